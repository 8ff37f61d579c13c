// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import "github.com/alumnet-portal/chatsync/lib/ref"

// Event names on the chat channel.
const (
	// Client to server.
	EventSendMessage = "sendMessage"
	EventJoinRoom    = "joinRoom"
	EventMarkRead    = "markRead"

	// Server to client.
	EventNewMessage   = "newMessage"
	EventMessagesRead = "messagesRead"
)

// SendMessageRequest is the sendMessage payload. The server answers
// with an ack; the stored message comes back separately as newMessage.
type SendMessageRequest struct {
	To      ref.UserID `json:"to"`
	Content string     `json:"content"`
}

// JoinRoomRequest subscribes the connection to a room's pushes.
type JoinRoomRequest struct {
	TargetUserID ref.UserID `json:"targetUserId"`
}

// MarkReadRequest acknowledges every message in a room addressed to
// the sender.
type MarkReadRequest struct {
	RoomID ref.RoomID `json:"roomId"`
}

// MessagesReadEvent tells a client that the room was read, possibly on
// another of the user's devices.
type MessagesReadEvent struct {
	RoomID ref.RoomID `json:"roomId"`
}

// AckPayload is the data of an ack frame. An empty Error means success.
type AckPayload struct {
	Error string `json:"error,omitempty"`
}
