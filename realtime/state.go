// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

// State is the connectivity of the event channel.
type State int

const (
	// Disconnected is the initial state, and the state after Stop, an
	// authentication rejection, or exhausting reconnect attempts.
	Disconnected State = iota

	// Connecting covers dialing, the handshake, and backoff waits
	// between attempts.
	Connecting

	// Connected means the server acknowledged the handshake and sends
	// are accepted.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}
