// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the session credential issued by the portal's
// login flow. The chat client never creates or refreshes credentials;
// it receives one from the auth collaborator at login and presents it
// on the event-channel handshake and as the bearer token of every REST
// call.
//
// A [Buffer] keeps the credential in an anonymous mmap region outside
// the Go heap, locked against swap and excluded from core dumps. Close
// zeroes and unmaps it; the CLI closes the buffer on logout.
package secret
