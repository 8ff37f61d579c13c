// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"time"

	"github.com/alumnet-portal/chatsync/lib/ref"
)

// User is the portal's reference to a person. The chat client only
// reads it.
type User struct {
	ID   ref.UserID `json:"id"`
	Name string     `json:"name,omitempty"`
	Role string     `json:"role,omitempty"`
}

// DisplayName returns Name, falling back to the identifier.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return string(u.ID)
}

// Message is a persisted chat message as the server serializes it, in
// REST history responses and in newMessage pushes alike.
type Message struct {
	ID          string     `json:"id"`
	SenderID    ref.UserID `json:"senderId"`
	RecipientID ref.UserID `json:"recipientId"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"createdAt"`
	RoomID      ref.RoomID `json:"roomId,omitempty"`
	Read        bool       `json:"read"`
}

// Room returns RoomID, deriving it from the participants when the
// server omitted it.
func (m Message) Room() ref.RoomID {
	if m.RoomID != "" {
		return m.RoomID
	}
	return ref.RoomFor(m.SenderID, m.RecipientID)
}

// ConversationSummary is one entry of GET /messages.
type ConversationSummary struct {
	Counterpart User     `json:"counterpartUser"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	Pinned      bool     `json:"pinned"`
}

// ToggleResult is the body of the pin and delete endpoints.
type ToggleResult struct {
	Success bool `json:"success"`
}
