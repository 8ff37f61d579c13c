// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import "github.com/alumnet-portal/chatsync/lib/codec"

// Channel-level event names. Application events (newMessage and the
// rest) are defined by the portal package.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
	EventAck          = "ack"
)

// ConnectErrorPayload is the data of connect_error and of a
// server-initiated disconnect. Reason "auth" marks the credential as
// rejected.
type ConnectErrorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ReasonAuth is the connect_error reason for a rejected credential.
const ReasonAuth = "auth"

// Event is one inbound application event.
type Event struct {
	Name  string
	Data  []byte
	codec codec.FrameCodec
}

// NewEvent builds an Event whose data is encoded with frameCodec. The
// manager constructs events itself; this is for in-memory channels.
func NewEvent(name string, data []byte, frameCodec codec.FrameCodec) Event {
	return Event{Name: name, Data: data, codec: frameCodec}
}

// Decode decodes the event data into v.
func (e Event) Decode(v any) error {
	return e.codec.DecodeData(e.Data, v)
}

// Handler receives inbound events. Handlers run on the reader
// goroutine and must not block on the manager.
type Handler func(Event)

// AckFunc receives the outcome of one Send. It is called exactly once.
type AckFunc func(err error)
