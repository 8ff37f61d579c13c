// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
)

// Conn is the subset of a websocket connection the manager uses.
// ReadMessage is only called from one goroutine; WriteMessage calls are
// serialized by the manager.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, payload []byte) error
	Close() error
}

// Dialer opens connections. Tests substitute an in-memory dialer.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials real websocket servers.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial performs the HTTP upgrade. A 401 or 403 on upgrade is an
// *AuthError; other failures are returned as is.
func (d WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, response, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if response != nil && errors.Is(err, websocket.ErrBadHandshake) {
			switch response.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, &AuthError{StatusCode: response.StatusCode, Message: "upgrade refused"}
			}
		}
		return nil, err
	}
	return &websocketConn{Conn: conn}, nil
}

type websocketConn struct {
	*websocket.Conn
}

// Close sends a normal-closure control frame before closing, so the
// server sees a clean logout rather than a reset.
func (c *websocketConn) Close() error {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.Conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	return c.Conn.Close()
}
