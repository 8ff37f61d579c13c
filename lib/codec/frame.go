// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Format names a wire format. The names are the values accepted by the
// channel.codec configuration key and the ?codec= handshake parameter.
type Format string

const (
	JSON Format = "json"
	CBOR Format = "cbor"
)

// Frame is one decoded envelope. Data is still encoded in the frame's
// format; decode it with the same codec's DecodeData.
type Frame struct {
	Event string
	AckID uint64
	Data  []byte
}

// FrameCodec converts envelopes to and from websocket payloads.
type FrameCodec interface {
	// Format reports the wire format name.
	Format() Format
	// Binary reports whether payloads go in binary websocket frames.
	Binary() bool
	// EncodeFrame builds one envelope around data.
	EncodeFrame(event string, ackID uint64, data any) ([]byte, error)
	// DecodeFrame parses an envelope, leaving Data raw.
	DecodeFrame(payload []byte) (Frame, error)
	// DecodeData decodes a Frame.Data into v.
	DecodeData(data []byte, v any) error
}

// ForFormat returns the codec for a format name. The empty name selects
// JSON.
func ForFormat(format Format) (FrameCodec, error) {
	switch format {
	case "", JSON:
		return jsonCodec{}, nil
	case CBOR:
		return cborCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown frame format %q", format)
	}
}

type jsonEnvelope struct {
	Event string          `json:"event"`
	AckID uint64          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Format() Format { return JSON }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) EncodeFrame(event string, ackID uint64, data any) ([]byte, error) {
	envelope := jsonEnvelope{Event: event, AckID: ackID}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("codec: encoding %s payload: %w", event, err)
		}
		envelope.Data = encoded
	}
	return json.Marshal(envelope)
}

func (jsonCodec) DecodeFrame(payload []byte) (Frame, error) {
	var envelope jsonEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Frame{}, fmt.Errorf("codec: decoding JSON frame: %w", err)
	}
	if envelope.Event == "" {
		return Frame{}, fmt.Errorf("codec: frame has no event name")
	}
	return Frame{Event: envelope.Event, AckID: envelope.AckID, Data: envelope.Data}, nil
}

func (jsonCodec) DecodeData(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type cborEnvelope struct {
	Event string          `cbor:"event"`
	AckID uint64          `cbor:"ack_id,omitempty"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

type cborCodec struct{}

func (cborCodec) Format() Format { return CBOR }

func (cborCodec) Binary() bool { return true }

func (cborCodec) EncodeFrame(event string, ackID uint64, data any) ([]byte, error) {
	envelope := cborEnvelope{Event: event, AckID: ackID}
	if data != nil {
		encoded, err := encMode.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("codec: encoding %s payload: %w", event, err)
		}
		envelope.Data = encoded
	}
	return encMode.Marshal(envelope)
}

func (cborCodec) DecodeFrame(payload []byte) (Frame, error) {
	var envelope cborEnvelope
	if err := decMode.Unmarshal(payload, &envelope); err != nil {
		return Frame{}, fmt.Errorf("codec: decoding CBOR frame: %w", err)
	}
	if envelope.Event == "" {
		return Frame{}, fmt.Errorf("codec: frame has no event name")
	}
	return Frame{Event: envelope.Event, AckID: envelope.AckID, Data: envelope.Data}, nil
}

func (cborCodec) DecodeData(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return decMode.Unmarshal(data, v)
}
