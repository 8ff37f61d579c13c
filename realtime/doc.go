// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package realtime owns the chat event channel: one authenticated
// websocket per signed-in session, reconnected with bounded exponential
// backoff after transport drops.
//
// A [Manager] moves through three states. Start (login) enters
// Connecting and dials; the server's "connect" frame moves it to
// Connected. A transport drop returns to Connecting and retries;
// MaxAttempts consecutive failures, an authentication rejection, or
// Stop (logout) end in Disconnected with no further retries.
//
// Consumers see the channel through two operations. [Manager.Send]
// writes an event and, when an [AckFunc] is given, calls it exactly
// once: with nil when the server acknowledges, with the server's
// rejection, with ErrNotConnected when the channel is down at call
// time, or with a *TransportError when the connection drops before the
// ack arrives. [Manager.Subscribe] registers a handler for one event
// name. All handlers and acks run on the connection's single reader
// goroutine, in arrival order, each to completion before the next
// frame is read.
//
// Frames are encoded by a lib/codec FrameCodec: JSON text frames by
// default, CBOR binary frames when the URL carries ?codec=cbor.
package realtime
