// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/ref"
)

// client is one websocket connection. The hub owns send: it is the
// only writer and closes it when the client leaves.
type client struct {
	user  ref.UserID
	codec codec.FrameCodec
	send  chan []byte
}

func newClient(user ref.UserID, frameCodec codec.FrameCodec, buffer int) *client {
	return &client{
		user:  user,
		codec: frameCodec,
		send:  make(chan []byte, buffer),
	}
}

func (c *client) messageType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// readPump decodes frames and hands them to the hub until the
// connection fails, then leaves the hub.
func (c *client) readPump(conn *websocket.Conn, h *hub) {
	defer h.leave(c)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := c.codec.DecodeFrame(payload)
		if err != nil {
			h.logger.Warn("dropping malformed frame", "user_id", c.user, "error", err)
			continue
		}
		if !h.deliver(inboundFrame{client: c, frame: frame}) {
			return
		}
	}
}

// writePump writes queued frames until the hub closes send, then
// closes the connection.
func (c *client) writePump(conn *websocket.Conn) {
	for payload := range c.send {
		if err := conn.WriteMessage(c.messageType(), payload); err != nil {
			// Keep draining so the hub never blocks on a dead peer.
			continue
		}
	}
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	conn.Close()
}
