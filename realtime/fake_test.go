// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/fasthttp/websocket"

	"github.com/alumnet-portal/chatsync/lib/codec"
)

// fakeConn is one in-memory connection. The test plays the server by
// pushing frames into inbound and reading what the manager wrote.
type fakeConn struct {
	inbound   chan []byte
	written   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	default:
	}
	select {
	case payload := <-c.inbound:
		return websocket.TextMessage, payload, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, payload []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.written <- append([]byte(nil), payload...)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type dialResult struct {
	conn Conn
	err  error
}

type dialAttempt struct {
	url    string
	header http.Header
	reply  chan dialResult
}

// fakeDialer hands every Dial to the test through attempts.
type fakeDialer struct {
	attempts chan dialAttempt
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{attempts: make(chan dialAttempt, 4)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	reply := make(chan dialResult, 1)
	select {
	case d.attempts <- dialAttempt{url: url, header: header, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-reply:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func encodeFrame(t *testing.T, frameCodec codec.FrameCodec, event string, ackID uint64, data any) []byte {
	t.Helper()
	payload, err := frameCodec.EncodeFrame(event, ackID, data)
	if err != nil {
		t.Fatalf("EncodeFrame(%s): %v", event, err)
	}
	return payload
}

func decodeFrame(t *testing.T, frameCodec codec.FrameCodec, payload []byte) codec.Frame {
	t.Helper()
	frame, err := frameCodec.DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return frame
}
