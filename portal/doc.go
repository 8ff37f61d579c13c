// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package portal is the client side of the alumni portal's chat
// contract: the REST endpoints that list conversations and return
// history, and the payload types carried over the event channel.
//
// The REST client is deliberately thin. A [Client] holds the base URL
// and HTTP transport; a [Session] binds it to one user's credential.
// All responses are read through lib/netutil's bounded reader and
// non-2xx responses become [*APIError], so callers can branch on the
// status without parsing strings:
//
//	summaries, err := session.Conversations(ctx)
//	if portal.IsUnauthorized(err) {
//	    // credential expired; the surface asks for a new login
//	}
//
// Event payloads ([SendMessageRequest], [JoinRoomRequest],
// [MarkReadRequest], [MessagesReadEvent], [AckPayload]) are shared by
// the conversation store and the development server so both ends of
// the channel agree on field names.
package portal
