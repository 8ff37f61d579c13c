// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"errors"
	"fmt"

	"github.com/alumnet-portal/chatsync/lib/ref"
)

var (
	// ErrEmptyMessage rejects sends that are blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoActiveConversation rejects sends with no open conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// SendError reports a send that did not happen or was rolled back.
// Unwrap exposes the cause: ErrEmptyMessage, ErrNoActiveConversation,
// realtime.ErrNotConnected, a *realtime.RejectedError from the server,
// or a *realtime.TransportError when the channel dropped before the
// ack.
type SendError struct {
	Room ref.RoomID

	// MessageID is the temporary id of a rolled-back message; empty
	// when nothing was appended.
	MessageID string

	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("conversation: send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// FetchError reports a failed history or list fetch. The conversation
// stays usable; the surface offers a retry.
type FetchError struct {
	// Op is "history" or "list".
	Op   string
	Room ref.RoomID
	Err  error
}

func (e *FetchError) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("conversation: fetching %s for %s: %v", e.Op, e.Room, e.Err)
	}
	return fmt.Sprintf("conversation: fetching %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
