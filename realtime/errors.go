// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConnected is passed to an AckFunc when Send is called while
	// the manager is not Connected.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrStopped is passed to acks still outstanding at Stop.
	ErrStopped = errors.New("realtime: manager stopped")

	// ErrAlreadyStarted is returned by Start on a running manager.
	ErrAlreadyStarted = errors.New("realtime: manager already started")
)

// TransportError is a dial, read, or write failure. The manager
// retries these; they reach callers only through acks outstanding at
// the moment of a drop, and through LastError once attempts run out.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("realtime: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError is a rejected handshake. It is terminal for the session.
type AuthError struct {
	// StatusCode is the HTTP status of a rejected upgrade, or zero
	// when the rejection came as a connect_error frame.
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("realtime: handshake rejected (%d %s): %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("realtime: handshake rejected: %s", e.Message)
}

// RejectedError is a server ack carrying an error.
type RejectedError struct {
	Event  string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("realtime: server rejected %s: %s", e.Event, e.Reason)
}

// IsAuthError reports whether err is, or wraps, an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
