// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the identity types shared by the chat client:
// [UserID] for portal accounts and [RoomID] for one-to-one
// conversations.
//
// Portal user identifiers arrive from the REST API and the event
// channel in whatever form the backend serialized them: JSON strings,
// JSON numbers, or values that already implement fmt.Stringer. Two
// clients that disagree on the form would compute different room IDs
// for the same pair of users, so every identifier is coerced to its
// canonical string form by [UserIDOf] before it is used for anything
// else.
//
// A RoomID is derived, never assigned: [RoomFor] sorts the canonical
// forms of both participants and joins them with [RoomSeparator]. The
// result is the same regardless of which participant initiates.
package ref
