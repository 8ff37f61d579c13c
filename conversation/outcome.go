// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import "github.com/alumnet-portal/chatsync/lib/ref"

// OutcomeKind names the branch a push took through reconciliation.
type OutcomeKind int

const (
	// Ignored: the message is neither from nor to the current user.
	Ignored OutcomeKind = iota

	// Unloaded: the room has no loaded conversation. Only the list
	// preview and the unread counter were updated.
	Unloaded

	// DuplicateID: a message with the same confirmed id is already
	// present, typically a redelivery after reconnect.
	DuplicateID

	// EchoReplaced: the push confirmed one of our pending messages,
	// which was replaced with the server's copy.
	EchoReplaced

	// DuplicateContent: a confirmed message with the same sender and
	// content, and a timestamp within the tolerance, is already present.
	DuplicateContent

	// Appended: the message was new and inserted in timestamp order.
	Appended
)

func (k OutcomeKind) String() string {
	switch k {
	case Ignored:
		return "ignored"
	case Unloaded:
		return "unloaded"
	case DuplicateID:
		return "duplicate-id"
	case EchoReplaced:
		return "echo-replaced"
	case DuplicateContent:
		return "duplicate-content"
	case Appended:
		return "appended"
	default:
		return "unknown"
	}
}

// Outcome describes what one push did.
type Outcome struct {
	Kind OutcomeKind
	Room ref.RoomID

	// Index is the message's position after the change for
	// EchoReplaced and Appended, the position of the existing copy for
	// the duplicate kinds, and -1 otherwise.
	Index int

	// ReplacedID is the temporary id an EchoReplaced push retired.
	ReplacedID string

	// UnreadIncremented reports whether the room's counter went up.
	UnreadIncremented bool
}

// Inserted reports whether the push added or replaced a message.
func (o Outcome) Inserted() bool {
	return o.Kind == EchoReplaced || o.Kind == Appended
}
