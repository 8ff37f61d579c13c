// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/netutil"
	"github.com/alumnet-portal/chatsync/lib/secret"
)

// Config configures a Manager.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Codec defaults to JSON. A binary codec adds codec=<format> to the
	// URL query so the server answers in the same format.
	Codec codec.FrameCodec

	// Dialer defaults to a WebsocketDialer.
	Dialer Dialer

	// HandshakeTimeout bounds the dial plus the wait for the server's
	// connect frame. Defaults to 10 seconds.
	HandshakeTimeout time.Duration

	Backoff Backoff

	// UserAgent is sent on the upgrade request when set.
	UserAgent string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Manager maintains the session's event channel. Create one per login
// with NewManager; Start and Stop bracket the session.
type Manager struct {
	url              string
	codec            codec.FrameCodec
	dialer           Dialer
	handshakeTimeout time.Duration
	backoff          Backoff
	userAgent        string
	clock            clock.Clock
	logger           *slog.Logger

	mu          sync.Mutex
	state       State
	lastError   error
	conn        Conn
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	nextAckID   uint64
	pendingAcks map[uint64]pendingAck
	handlers    map[string][]*subscription
	stateFuncs  []*stateSubscription
	connectFunc []*connectSubscription

	// writeMu serializes frame writes. Held only around WriteMessage.
	writeMu sync.Mutex
}

type pendingAck struct {
	event string
	ack   AckFunc
}

type subscription struct {
	handler Handler
}

type stateSubscription struct {
	fn func(State)
}

type connectSubscription struct {
	fn func()
}

// NewManager validates config and returns a Disconnected manager.
func NewManager(config Config) (*Manager, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("realtime: URL is required")
	}
	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("realtime: invalid URL %q: %w", config.URL, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("realtime: URL must be ws or wss, got %q", config.URL)
	}

	frameCodec := config.Codec
	if frameCodec == nil {
		frameCodec, _ = codec.ForFormat(codec.JSON)
	}
	if frameCodec.Format() != codec.JSON {
		query := parsed.Query()
		query.Set("codec", string(frameCodec.Format()))
		parsed.RawQuery = query.Encode()
	}

	handshakeTimeout := config.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{HandshakeTimeout: handshakeTimeout}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		url:              parsed.String(),
		codec:            frameCodec,
		dialer:           dialer,
		handshakeTimeout: handshakeTimeout,
		backoff:          config.Backoff.withDefaults(),
		userAgent:        config.UserAgent,
		clock:            clk,
		logger:           logger.With("component", "realtime"),
		pendingAcks:      make(map[uint64]pendingAck),
		handlers:         make(map[string][]*subscription),
	}, nil
}

// State returns the current connectivity.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent connection failure: the
// *TransportError of the last drop or failed attempt, or the *AuthError
// that ended the session. Start clears it; Stop leaves it alone.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Start opens the channel with credential and keeps it open until Stop.
// The manager reads the credential on every dial; the caller keeps it
// alive until after Stop returns.
func (m *Manager) Start(credential *secret.Buffer) error {
	if credential == nil {
		return fmt.Errorf("realtime: credential is required")
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.lastError = nil
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(ctx, credential)
	}()
	return nil
}

// Stop closes the channel immediately, fails outstanding acks with
// ErrStopped, and waits for the connection goroutine to exit. The
// manager ends Disconnected and does not retry. Stop on a manager that
// is not running is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	conn := m.conn
	done := m.done
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.failPendingAcks(ErrStopped)
	m.setState(Disconnected, nil)
	m.logger.Info("event channel stopped")
}

// Send writes one event. When ack is non-nil it is called exactly once
// with the outcome; see the package documentation. Send never blocks on
// the network beyond a single frame write.
func (m *Manager) Send(event string, payload any, ack AckFunc) {
	m.mu.Lock()
	conn := m.conn
	if m.state != Connected || conn == nil {
		m.mu.Unlock()
		if ack != nil {
			ack(ErrNotConnected)
		}
		return
	}
	var ackID uint64
	if ack != nil {
		m.nextAckID++
		ackID = m.nextAckID
		m.pendingAcks[ackID] = pendingAck{event: event, ack: ack}
	}
	m.mu.Unlock()

	frame, err := m.codec.EncodeFrame(event, ackID, payload)
	if err != nil {
		m.resolveAck(ackID, err)
		return
	}

	m.writeMu.Lock()
	err = conn.WriteMessage(m.messageType(), frame)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Warn("event write failed", "event", event, "error", err)
		m.resolveAck(ackID, &TransportError{Op: "write", Err: err})
		// The reader sees the same failure and drives the reconnect.
		conn.Close()
	}
}

// Subscribe registers handler for inbound events named event. Handlers
// for the same event run in registration order. The returned function
// removes the subscription.
func (m *Manager) Subscribe(event string, handler Handler) (unsubscribe func()) {
	sub := &subscription{handler: handler}
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], sub)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.handlers[event]
		for index, candidate := range subs {
			if candidate == sub {
				m.handlers[event] = append(subs[:index:index], subs[index+1:]...)
				return
			}
		}
	}
}

// OnStateChange registers fn to be called after every state
// transition. Calls are synchronous and ordered.
func (m *Manager) OnStateChange(fn func(State)) (unsubscribe func()) {
	sub := &stateSubscription{fn: fn}
	m.mu.Lock()
	m.stateFuncs = append(m.stateFuncs, sub)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for index, candidate := range m.stateFuncs {
			if candidate == sub {
				m.stateFuncs = append(m.stateFuncs[:index:index], m.stateFuncs[index+1:]...)
				return
			}
		}
	}
}

// OnConnect registers fn to run after every successful handshake,
// before any inbound event of the new connection is dispatched. The
// store uses it to rejoin the active room and refresh the list.
func (m *Manager) OnConnect(fn func()) (unsubscribe func()) {
	sub := &connectSubscription{fn: fn}
	m.mu.Lock()
	m.connectFunc = append(m.connectFunc, sub)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for index, candidate := range m.connectFunc {
			if candidate == sub {
				m.connectFunc = append(m.connectFunc[:index:index], m.connectFunc[index+1:]...)
				return
			}
		}
	}
}

// run is the connection goroutine: dial, handshake, read until the
// connection drops, back off, repeat.
func (m *Manager) run(ctx context.Context, credential *secret.Buffer) {
	failures := 0
	for {
		m.setState(Connecting, nil)

		conn, err := m.connect(ctx, credential)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			if IsAuthError(err) {
				m.logger.Error("event channel authentication rejected", "error", err)
				m.finish(err)
				return
			}
			failures++
			m.setState(Connecting, err)
			m.logger.Warn("event channel connect failed",
				"attempt", failures,
				"max_attempts", m.backoff.MaxAttempts,
				"error", err,
			)
			if !m.wait(ctx, failures, err) {
				return
			}
			continue
		}

		failures = 0
		m.setState(Connected, nil)
		m.logger.Info("event channel connected", "url", m.url, "codec", m.codec.Format())
		m.runConnectHooks()

		readErr := m.readLoop(conn)
		conn.Close()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if IsAuthError(readErr) {
			m.failPendingAcks(readErr)
			m.logger.Error("event channel closed by server: session rejected", "error", readErr)
			m.finish(readErr)
			return
		}

		transportErr := &TransportError{Op: "read", Err: readErr}
		m.failPendingAcks(transportErr)
		if netutil.IsExpectedCloseError(readErr) || websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			m.logger.Info("event channel closed", "error", readErr)
		} else {
			m.logger.Warn("event channel dropped", "error", readErr)
		}
		failures++
		m.setState(Connecting, transportErr)
		if !m.wait(ctx, failures, transportErr) {
			return
		}
	}
}

// wait sleeps before retry number failures. It returns false when the
// loop must exit: the context ended or the attempt ceiling was reached.
func (m *Manager) wait(ctx context.Context, failures int, cause error) bool {
	if m.backoff.Exhausted(failures) {
		m.logger.Error("event channel giving up", "attempts", failures, "error", cause)
		var transportErr *TransportError
		if !errors.As(cause, &transportErr) {
			cause = &TransportError{Op: "connect", Err: cause}
		}
		m.finish(cause)
		return false
	}
	delay := m.backoff.Delay(failures)
	m.logger.Debug("event channel backing off", "attempt", failures, "delay", delay)
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(delay):
		return true
	}
}

// finish ends the session without Stop: the goroutine exits and the
// manager can be started again.
func (m *Manager) finish(cause error) {
	m.mu.Lock()
	m.running = false
	m.cancel()
	m.mu.Unlock()
	m.setState(Disconnected, cause)
}

// connect dials and waits for the server's connect frame.
func (m *Manager) connect(ctx context.Context, credential *secret.Buffer) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential.String())
	if m.userAgent != "" {
		header.Set("User-Agent", m.userAgent)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	defer cancel()
	conn, err := m.dialer.Dial(dialCtx, m.url, header)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}

	// Publish the connection before the handshake read so Stop can
	// close it to interrupt the wait.
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	if ctx.Err() != nil {
		return conn, ctx.Err()
	}

	stop := m.clock.AfterFunc(m.handshakeTimeout, func() { conn.Close() })
	frame, err := m.readFrame(conn)
	if !stop() {
		err = fmt.Errorf("no connect frame within %v", m.handshakeTimeout)
	}
	if err == nil {
		switch frame.Event {
		case EventConnect:
		case EventConnectError:
			err = m.connectError(frame)
		default:
			err = fmt.Errorf("expected %s frame, got %q", EventConnect, frame.Event)
		}
	}
	if err != nil {
		conn.Close()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		if IsAuthError(err) {
			return nil, err
		}
		return nil, &TransportError{Op: "handshake", Err: err}
	}
	return conn, nil
}

func (m *Manager) connectError(frame codec.Frame) error {
	var payload ConnectErrorPayload
	if err := m.codec.DecodeData(frame.Data, &payload); err != nil {
		return fmt.Errorf("decoding %s: %w", frame.Event, err)
	}
	if payload.Reason == ReasonAuth {
		return &AuthError{Message: payload.Message}
	}
	return fmt.Errorf("server refused connection: %s %s", payload.Reason, payload.Message)
}

func (m *Manager) readFrame(conn Conn) (codec.Frame, error) {
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return codec.Frame{}, err
	}
	return m.codec.DecodeFrame(payload)
}

// readLoop dispatches frames until the connection fails.
func (m *Manager) readLoop(conn Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := m.codec.DecodeFrame(payload)
		if err != nil {
			// A frame that does not decode is a server bug, not a
			// reason to drop the session.
			m.logger.Warn("dropping malformed frame", "error", err)
			if m.codec.Binary() && m.logger.Enabled(context.Background(), slog.LevelDebug) {
				if diagnostic, diagErr := codec.Diagnose(payload); diagErr == nil {
					m.logger.Debug("malformed frame contents", "cbor", diagnostic)
				}
			}
			continue
		}

		switch frame.Event {
		case EventAck:
			var ack struct {
				Error string `json:"error,omitempty"`
			}
			if err := m.codec.DecodeData(frame.Data, &ack); err != nil {
				m.logger.Warn("malformed ack", "ack_id", frame.AckID, "error", err)
			}
			m.resolveServerAck(frame.AckID, ack.Error)
		case EventDisconnect:
			var reason ConnectErrorPayload
			_ = m.codec.DecodeData(frame.Data, &reason)
			if reason.Reason == ReasonAuth {
				return &AuthError{Message: reason.Message}
			}
			return fmt.Errorf("server disconnect: %s", reason.Reason)
		default:
			m.dispatch(Event{Name: frame.Event, Data: frame.Data, codec: m.codec})
		}
	}
}

func (m *Manager) dispatch(event Event) {
	m.mu.Lock()
	subs := append([]*subscription(nil), m.handlers[event.Name]...)
	m.mu.Unlock()
	if len(subs) == 0 {
		m.logger.Debug("event without subscribers", "event", event.Name)
		return
	}
	for _, sub := range subs {
		sub.handler(event)
	}
}

func (m *Manager) resolveServerAck(ackID uint64, reason string) {
	m.mu.Lock()
	pending, ok := m.pendingAcks[ackID]
	delete(m.pendingAcks, ackID)
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("ack for unknown id", "ack_id", ackID)
		return
	}
	if reason != "" {
		pending.ack(&RejectedError{Event: pending.event, Reason: reason})
		return
	}
	pending.ack(nil)
}

func (m *Manager) resolveAck(ackID uint64, err error) {
	if ackID == 0 {
		return
	}
	m.mu.Lock()
	pending, ok := m.pendingAcks[ackID]
	delete(m.pendingAcks, ackID)
	m.mu.Unlock()
	if ok {
		pending.ack(err)
	}
}

func (m *Manager) failPendingAcks(err error) {
	m.mu.Lock()
	pending := m.pendingAcks
	m.pendingAcks = make(map[uint64]pendingAck)
	m.mu.Unlock()
	for _, entry := range pending {
		entry.ack(err)
	}
}

func (m *Manager) runConnectHooks() {
	m.mu.Lock()
	hooks := append([]*connectSubscription(nil), m.connectFunc...)
	m.mu.Unlock()
	for _, hook := range hooks {
		hook.fn()
	}
}

// setState records a transition and notifies listeners. cause, when
// non-nil, becomes LastError.
func (m *Manager) setState(state State, cause error) {
	m.mu.Lock()
	if cause != nil {
		m.lastError = cause
	}
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	listeners := append([]*stateSubscription(nil), m.stateFuncs...)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener.fn(state)
	}
}

func (m *Manager) messageType() int {
	if m.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
