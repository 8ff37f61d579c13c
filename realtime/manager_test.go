// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/secret"
	"github.com/alumnet-portal/chatsync/lib/testutil"
)

const testTimeout = 5 * time.Second

type harness struct {
	manager *Manager
	dialer  *fakeDialer
	clock   *clock.FakeClock
	codec   codec.FrameCodec
	states  chan State
}

func newHarness(t *testing.T, backoff Backoff) *harness {
	t.Helper()
	frameCodec, _ := codec.ForFormat(codec.JSON)
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	dialer := newFakeDialer()
	manager, err := NewManager(Config{
		URL:              "ws://portal.test/ws",
		Codec:            frameCodec,
		Dialer:           dialer,
		HandshakeTimeout: 3 * time.Second,
		Backoff:          backoff,
		Clock:            fakeClock,
		Logger:           slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	states := make(chan State, 64)
	manager.OnStateChange(func(state State) { states <- state })
	t.Cleanup(manager.Stop)
	return &harness{manager: manager, dialer: dialer, clock: fakeClock, codec: frameCodec, states: states}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	credential, err := secret.FromString("session-token")
	if err != nil {
		t.Fatalf("secret.FromString: %v", err)
	}
	if err := h.manager.Start(credential); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		h.manager.Stop()
		credential.Close()
	})
}

// accept answers the next dial with a connection and completes the
// handshake.
func (h *harness) accept(t *testing.T) *fakeConn {
	t.Helper()
	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "waiting for dial")
	conn := newFakeConn()
	attempt.reply <- dialResult{conn: conn}
	conn.inbound <- encodeFrame(t, h.codec, EventConnect, 0, nil)
	h.waitForState(t, Connected)
	return conn
}

func (h *harness) waitForState(t *testing.T, want State) {
	t.Helper()
	for {
		state := testutil.RequireReceive(t, h.states, testTimeout, "waiting for state %s", want)
		if state == want {
			return
		}
	}
}

func TestNewManagerValidation(t *testing.T) {
	for _, url := range []string{"", "http://portal.test/ws", "://"} {
		if _, err := NewManager(Config{URL: url}); err == nil {
			t.Errorf("NewManager(%q) succeeded, want error", url)
		}
	}
}

func TestNewManagerAddsCodecQuery(t *testing.T) {
	cborCodec, _ := codec.ForFormat(codec.CBOR)
	manager, err := NewManager(Config{URL: "wss://portal.test/ws?v=2", Codec: cborCodec})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !strings.Contains(manager.url, "codec=cbor") || !strings.Contains(manager.url, "v=2") {
		t.Errorf("url = %q, want codec=cbor and original query", manager.url)
	}
	if manager.messageType() != 2 {
		t.Errorf("CBOR frames should be binary, got message type %d", manager.messageType())
	}
}

func TestSendWhileDisconnectedFailsFast(t *testing.T) {
	h := newHarness(t, DefaultBackoff())

	var got error
	called := false
	h.manager.Send("sendMessage", map[string]string{"to": "bob"}, func(err error) {
		called = true
		got = err
	})
	if !called {
		t.Fatal("ack was not called synchronously")
	}
	if !errors.Is(got, ErrNotConnected) {
		t.Errorf("ack error = %v, want ErrNotConnected", got)
	}
	// Fire-and-forget sends with a nil ack must not panic.
	h.manager.Send("markRead", nil, nil)
}

func TestConnectHandshake(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	connects := make(chan struct{}, 4)
	h.manager.OnConnect(func() { connects <- struct{}{} })

	h.start(t)
	h.waitForState(t, Connecting)

	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "waiting for dial")
	if got := attempt.header.Get("Authorization"); got != "Bearer session-token" {
		t.Errorf("Authorization = %q", got)
	}
	if attempt.url != "ws://portal.test/ws" {
		t.Errorf("dial url = %q", attempt.url)
	}
	conn := newFakeConn()
	attempt.reply <- dialResult{conn: conn}
	conn.inbound <- encodeFrame(t, h.codec, EventConnect, 0, nil)

	h.waitForState(t, Connected)
	testutil.RequireReceive(t, connects, testTimeout, "OnConnect hook")
	if h.manager.State() != Connected {
		t.Errorf("State() = %s", h.manager.State())
	}
	if err := h.manager.Start(nil); err == nil {
		t.Error("Start(nil) should fail")
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)
	credential, _ := secret.FromString("other")
	defer credential.Close()
	if err := h.manager.Start(credential); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestSendAcknowledged(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)
	conn := h.accept(t)

	acks := make(chan error, 2)
	h.manager.Send("sendMessage", map[string]string{"to": "bob", "content": "hi"}, func(err error) { acks <- err })
	h.manager.Send("sendMessage", map[string]string{"to": "bob", "content": "spam"}, func(err error) { acks <- err })

	first := decodeFrame(t, h.codec, testutil.RequireReceive(t, conn.written, testTimeout, "first frame"))
	second := decodeFrame(t, h.codec, testutil.RequireReceive(t, conn.written, testTimeout, "second frame"))
	if first.Event != "sendMessage" || first.AckID == 0 || second.AckID == first.AckID {
		t.Fatalf("unexpected frames: %+v %+v", first, second)
	}

	conn.inbound <- encodeFrame(t, h.codec, EventAck, first.AckID, map[string]string{})
	if err := testutil.RequireReceive(t, acks, testTimeout, "first ack"); err != nil {
		t.Errorf("first ack = %v, want nil", err)
	}

	conn.inbound <- encodeFrame(t, h.codec, EventAck, second.AckID, map[string]string{"error": "blocked"})
	err := testutil.RequireReceive(t, acks, testTimeout, "second ack")
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Reason != "blocked" || rejected.Event != "sendMessage" {
		t.Errorf("second ack = %v, want RejectedError(blocked)", err)
	}
}

func TestSubscribeDeliversInArrivalOrder(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	received := make(chan string, 8)
	unsubscribe := h.manager.Subscribe("newMessage", func(event Event) {
		var payload struct {
			Content string `json:"content"`
		}
		if err := event.Decode(&payload); err != nil {
			t.Errorf("Decode: %v", err)
		}
		received <- payload.Content
	})
	other := make(chan string, 8)
	h.manager.Subscribe("messagesRead", func(event Event) { other <- event.Name })

	h.start(t)
	conn := h.accept(t)

	for _, content := range []string{"one", "two", "three"} {
		conn.inbound <- encodeFrame(t, h.codec, "newMessage", 0, map[string]string{"content": content})
	}
	for _, want := range []string{"one", "two", "three"} {
		if got := testutil.RequireReceive(t, received, testTimeout, "push %s", want); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	unsubscribe()
	conn.inbound <- encodeFrame(t, h.codec, "newMessage", 0, map[string]string{"content": "late"})
	conn.inbound <- encodeFrame(t, h.codec, "messagesRead", 0, map[string]string{"roomId": "a_b"})
	testutil.RequireReceive(t, other, testTimeout, "messagesRead")
	// messagesRead was queued after "late", so "late" has been handled.
	testutil.RequireNoReceive(t, received, 10*time.Millisecond, "unsubscribed handler still called")
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	received := make(chan struct{}, 1)
	h.manager.Subscribe("newMessage", func(Event) { received <- struct{}{} })
	h.start(t)
	conn := h.accept(t)

	conn.inbound <- []byte("{not json")
	conn.inbound <- encodeFrame(t, h.codec, "newMessage", 0, nil)
	testutil.RequireReceive(t, received, testTimeout, "push after malformed frame")
	if h.manager.State() != Connected {
		t.Errorf("State() = %s after malformed frame", h.manager.State())
	}
}

func TestAuthErrorOnDialIsTerminal(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)

	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "dial")
	attempt.reply <- dialResult{err: &AuthError{StatusCode: 401, Message: "upgrade refused"}}

	h.waitForState(t, Disconnected)
	if !IsAuthError(h.manager.LastError()) {
		t.Errorf("LastError() = %v, want AuthError", h.manager.LastError())
	}
	testutil.RequireNoReceive(t, h.dialer.attempts, 20*time.Millisecond, "manager retried after auth failure")
	if pending := h.clock.Pending(); pending != 0 {
		t.Errorf("%d timers pending after terminal auth failure", pending)
	}
}

func TestConnectErrorFrame(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)

	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "dial")
	conn := newFakeConn()
	attempt.reply <- dialResult{conn: conn}
	conn.inbound <- encodeFrame(t, h.codec, EventConnectError, 0, ConnectErrorPayload{Reason: ReasonAuth, Message: "token expired"})

	h.waitForState(t, Disconnected)
	var authErr *AuthError
	if !errors.As(h.manager.LastError(), &authErr) || authErr.Message != "token expired" {
		t.Errorf("LastError() = %v", h.manager.LastError())
	}
	testutil.RequireClosed(t, conn.closed, testTimeout, "rejected connection closed")
}

func TestServerAuthDisconnectIsTerminal(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)
	conn := h.accept(t)

	conn.inbound <- encodeFrame(t, h.codec, EventDisconnect, 0, ConnectErrorPayload{Reason: ReasonAuth, Message: "logged out elsewhere"})
	h.waitForState(t, Disconnected)
	if !IsAuthError(h.manager.LastError()) {
		t.Errorf("LastError() = %v, want AuthError", h.manager.LastError())
	}
	testutil.RequireNoReceive(t, h.dialer.attempts, 20*time.Millisecond, "manager retried after session rejection")
}

func TestReconnectAfterDrop(t *testing.T) {
	backoff := Backoff{Initial: time.Second, Max: 8 * time.Second, Multiplier: 2, MaxAttempts: 5}
	h := newHarness(t, backoff)
	connects := make(chan struct{}, 4)
	h.manager.OnConnect(func() { connects <- struct{}{} })
	h.start(t)
	conn := h.accept(t)
	testutil.RequireReceive(t, connects, testTimeout, "first connect")

	acks := make(chan error, 1)
	h.manager.Send("sendMessage", map[string]string{"content": "in flight"}, func(err error) { acks <- err })
	testutil.RequireReceive(t, conn.written, testTimeout, "in-flight frame")

	conn.Close()
	h.waitForState(t, Connecting)

	err := testutil.RequireReceive(t, acks, testTimeout, "in-flight ack")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("in-flight ack = %v, want TransportError", err)
	}

	// Dropped connections wait Initial before the first retry.
	h.clock.WaitForTimers(1)
	testutil.RequireNoReceive(t, h.dialer.attempts, 10*time.Millisecond, "redial before backoff elapsed")
	h.clock.Advance(time.Second)

	h.accept(t)
	testutil.RequireReceive(t, connects, testTimeout, "OnConnect after reconnect")
	if h.manager.LastError() == nil {
		t.Error("LastError() should record the drop")
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	backoff := Backoff{Initial: time.Second, Max: 3 * time.Second, Multiplier: 2, MaxAttempts: 3}
	h := newHarness(t, backoff)
	h.start(t)

	delays := []time.Duration{time.Second, 2 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		dial := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "dial %d", attempt)
		dial.reply <- dialResult{err: errors.New("connection refused")}
		if attempt < 3 {
			h.clock.WaitForTimers(1)
			h.clock.Advance(delays[attempt-1])
		}
	}

	h.waitForState(t, Disconnected)
	var transportErr *TransportError
	if !errors.As(h.manager.LastError(), &transportErr) {
		t.Errorf("LastError() = %v, want TransportError", h.manager.LastError())
	}
	testutil.RequireNoReceive(t, h.dialer.attempts, 20*time.Millisecond, "dial after attempt ceiling")
}

func TestHandshakeTimeout(t *testing.T) {
	backoff := Backoff{Initial: time.Second, Max: time.Second, Multiplier: 1, MaxAttempts: 5}
	h := newHarness(t, backoff)
	h.start(t)

	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "dial")
	silent := newFakeConn()
	attempt.reply <- dialResult{conn: silent}

	h.clock.WaitForTimers(1)
	h.clock.Advance(3 * time.Second)
	testutil.RequireClosed(t, silent.closed, testTimeout, "silent connection closed at handshake timeout")

	h.clock.WaitForTimers(1)
	h.clock.Advance(time.Second)
	h.accept(t)
}

func TestStopFailsPendingAcksAndDoesNotRetry(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)
	conn := h.accept(t)

	acks := make(chan error, 1)
	h.manager.Send("sendMessage", map[string]string{"content": "bye"}, func(err error) { acks <- err })
	testutil.RequireReceive(t, conn.written, testTimeout, "frame")

	h.manager.Stop()
	if err := testutil.RequireReceive(t, acks, testTimeout, "ack at stop"); !errors.Is(err, ErrStopped) {
		t.Errorf("ack = %v, want ErrStopped", err)
	}
	if h.manager.State() != Disconnected {
		t.Errorf("State() = %s after Stop", h.manager.State())
	}
	if h.manager.LastError() != nil {
		t.Errorf("LastError() = %v after explicit Stop", h.manager.LastError())
	}
	testutil.RequireClosed(t, conn.closed, testTimeout, "connection closed at Stop")
	testutil.RequireNoReceive(t, h.dialer.attempts, 20*time.Millisecond, "dial after Stop")

	// Stop is idempotent.
	h.manager.Stop()
}

func TestStopDuringBackoff(t *testing.T) {
	h := newHarness(t, DefaultBackoff())
	h.start(t)
	attempt := testutil.RequireReceive(t, h.dialer.attempts, testTimeout, "dial")
	attempt.reply <- dialResult{err: errors.New("refused")}
	h.clock.WaitForTimers(1)

	h.manager.Stop()
	h.waitForState(t, Disconnected)
}
