// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
	"github.com/alumnet-portal/chatsync/realtime"
)

type sentEvent struct {
	event   string
	payload any
	ack     realtime.AckFunc
}

// fakeChannel records sends and lets the test deliver events.
type fakeChannel struct {
	mu       sync.Mutex
	state    realtime.State
	sent     []sentEvent
	handlers map[string][]realtime.Handler
	connects []func()
}

func newFakeChannel(state realtime.State) *fakeChannel {
	return &fakeChannel{state: state, handlers: make(map[string][]realtime.Handler)}
}

func (c *fakeChannel) State() realtime.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) setState(state realtime.State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *fakeChannel) Send(event string, payload any, ack realtime.AckFunc) {
	c.mu.Lock()
	if c.state != realtime.Connected {
		c.mu.Unlock()
		if ack != nil {
			ack(realtime.ErrNotConnected)
		}
		return
	}
	c.sent = append(c.sent, sentEvent{event: event, payload: payload, ack: ack})
	c.mu.Unlock()
}

func (c *fakeChannel) Subscribe(event string, handler realtime.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
	index := len(c.handlers[event]) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers[event][index] = nil
	}
}

func (c *fakeChannel) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects = append(c.connects, fn)
	index := len(c.connects) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.connects[index] = nil
	}
}

func (c *fakeChannel) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encoding %s: %v", event, err)
	}
	jsonCodec, _ := codec.ForFormat(codec.JSON)
	c.mu.Lock()
	handlers := append([]realtime.Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, handler := range handlers {
		if handler != nil {
			handler(realtime.NewEvent(event, data, jsonCodec))
		}
	}
}

func (c *fakeChannel) connect() {
	c.setState(realtime.Connected)
	c.mu.Lock()
	hooks := append([]func(){}, c.connects...)
	c.mu.Unlock()
	for _, hook := range hooks {
		if hook != nil {
			hook()
		}
	}
}

func (c *fakeChannel) sentOf(event string) []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []sentEvent
	for _, sent := range c.sent {
		if sent.event == event {
			matched = append(matched, sent)
		}
	}
	return matched
}

// fakeHistory serves canned REST responses. A gate makes Messages for
// one counterpart block until the test closes it.
type fakeHistory struct {
	mu            sync.Mutex
	summaries     []portal.ConversationSummary
	summariesErr  error
	messages      map[ref.UserID][]portal.Message
	messageErrors map[ref.UserID]error
	gates         map[ref.UserID]chan struct{}
	started       chan ref.UserID
	pins          []ref.UserID
	deletes       []ref.UserID
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		messages:      make(map[ref.UserID][]portal.Message),
		messageErrors: make(map[ref.UserID]error),
		gates:         make(map[ref.UserID]chan struct{}),
		started:       make(chan ref.UserID, 16),
	}
}

func (h *fakeHistory) Conversations(context.Context) ([]portal.ConversationSummary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.summariesErr != nil {
		return nil, h.summariesErr
	}
	return append([]portal.ConversationSummary(nil), h.summaries...), nil
}

func (h *fakeHistory) Messages(ctx context.Context, counterpart ref.UserID) ([]portal.Message, error) {
	h.mu.Lock()
	gate := h.gates[counterpart]
	h.mu.Unlock()
	select {
	case h.started <- counterpart:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.messageErrors[counterpart]; err != nil {
		return nil, err
	}
	return append([]portal.Message(nil), h.messages[counterpart]...), nil
}

func (h *fakeHistory) TogglePin(_ context.Context, counterpart ref.UserID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pins = append(h.pins, counterpart)
	for index := range h.summaries {
		if h.summaries[index].Counterpart.ID == counterpart {
			h.summaries[index].Pinned = !h.summaries[index].Pinned
		}
	}
	return true, nil
}

func (h *fakeHistory) DeleteConversation(_ context.Context, counterpart ref.UserID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes = append(h.deletes, counterpart)
	for index, summary := range h.summaries {
		if summary.Counterpart.ID == counterpart {
			h.summaries = append(h.summaries[:index], h.summaries[index+1:]...)
			break
		}
	}
	return true, nil
}

func (h *fakeHistory) setMessages(counterpart ref.UserID, messages ...portal.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[counterpart] = messages
}

func (h *fakeHistory) setMessagesError(counterpart ref.UserID, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messageErrors[counterpart] = err
}

func (h *fakeHistory) gate(counterpart ref.UserID) chan struct{} {
	gate := make(chan struct{})
	h.mu.Lock()
	h.gates[counterpart] = gate
	h.mu.Unlock()
	return gate
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[ref.RoomID][]portal.Message
	saves   int
	loadErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[ref.RoomID][]portal.Message)}
}

func (c *fakeCache) Load(_ context.Context, room ref.RoomID) ([]portal.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, false, c.loadErr
	}
	messages, ok := c.entries[room]
	return append([]portal.Message(nil), messages...), ok, nil
}

func (c *fakeCache) Save(_ context.Context, room ref.RoomID, messages []portal.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.entries[room] = append([]portal.Message(nil), messages...)
	return nil
}

func (c *fakeCache) Forget(_ context.Context, room ref.RoomID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, room)
	return nil
}

var errBoom = errors.New("boom")
