// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package devserver is an in-memory implementation of the portal's
// chat backend: the /messages REST endpoints and the /ws event
// channel. It exists so the chat client can be developed and tested
// end to end without the real portal.
//
// All state lives in one hub goroutine. REST handlers and websocket
// read pumps talk to it over channels; nothing is persisted. Bearer
// tokens map to users through a static table given in [Config].
//
// The server speaks the same frame envelope as the client (see
// lib/codec). A connection that dials /ws?codec=cbor gets binary CBOR
// frames; every other connection gets JSON text frames.
package devserver
