// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// TemporaryPrefix marks client-assigned ids of pending messages.
const TemporaryPrefix = "temp_"

// Status is a message's position in the send lifecycle. Rejected
// messages are removed rather than kept with a third status.
type Status int

const (
	// Confirmed messages carry a server id and timestamp.
	Confirmed Status = iota
	// Pending messages were sent locally and not yet echoed.
	Pending
)

func (s Status) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

// Message is one utterance in a conversation.
type Message struct {
	ID          string
	SenderID    ref.UserID
	RecipientID ref.UserID
	Content     string
	CreatedAt   time.Time
	RoomID      ref.RoomID
	Read        bool
	Status      Status
}

// IsTemporary reports whether the id is client-assigned.
func (m Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, TemporaryPrefix)
}

// FromPortal converts a server message. The room is derived when the
// server omitted it.
func FromPortal(message portal.Message) Message {
	return Message{
		ID:          message.ID,
		SenderID:    message.SenderID,
		RecipientID: message.RecipientID,
		Content:     message.Content,
		CreatedAt:   message.CreatedAt,
		RoomID:      message.Room(),
		Read:        message.Read,
		Status:      Confirmed,
	}
}

// Portal converts back to the wire form, for the transcript cache.
func (m Message) Portal() portal.Message {
	return portal.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		RoomID:      m.RoomID,
		Read:        m.Read,
	}
}

func newTemporaryID() string {
	return TemporaryPrefix + uuid.NewString()
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	return append([]Message(nil), messages...)
}
