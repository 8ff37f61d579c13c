// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec encodes event-channel frames and cached transcripts.
//
// The event channel carries envelopes of the form {event, ack_id, data}.
// Two wire formats are supported and selected per connection:
//
//   - [JSON] (default): websocket text frames, interoperable with
//     browser clients of the same backend.
//   - [CBOR]: websocket binary frames using Core Deterministic Encoding
//     (RFC 8949 §4.2). Smaller frames on mobile links.
//
// A [FrameCodec] decodes the envelope first and leaves data raw, so the
// realtime package can route an event by name before decoding its
// payload into the handler's type.
//
// [Marshal] and [Unmarshal] expose the deterministic CBOR mode directly
// for the transcript cache.
package codec
