// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
	"github.com/alumnet-portal/chatsync/realtime"
)

var (
	me       = ref.UserID("alice")
	bob      = ref.UserID("bob")
	carol    = ref.UserID("carol")
	baseTime = time.Date(2026, 5, 20, 14, 30, 0, 0, time.UTC)
)

// fakeStore serves a fixed snapshot and records the calls the model
// makes.
type fakeStore struct {
	mu        sync.Mutex
	snapshot  conversation.Snapshot
	sendErr   error
	sent      []string
	opened    []ref.UserID
	pinned    []ref.UserID
	deleted   []ref.UserID
	retries   int
	refreshes int
	listeners []func(conversation.Change)
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshot: conversation.Snapshot{
		Me:            me,
		Conversations: make(map[ref.RoomID]conversation.ConversationView),
		Unread:        make(map[ref.RoomID]int),
	}}
}

func (s *fakeStore) Snapshot() conversation.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *fakeStore) Subscribe(fn func(conversation.Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	return func() {}
}

func (s *fakeStore) OpenConversation(_ context.Context, counterpart ref.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, counterpart)
	return nil
}

func (s *fakeStore) RetryOpen(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
	return nil
}

func (s *fakeStore) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeStore) TogglePin(_ context.Context, counterpart ref.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = append(s.pinned, counterpart)
	return nil
}

func (s *fakeStore) DeleteConversation(_ context.Context, counterpart ref.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, counterpart)
	return nil
}

func (s *fakeStore) RefreshConversationList(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

func (s *fakeStore) setSummaries(summaries ...portal.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Summaries = summaries
}

func (s *fakeStore) setActive(counterpart ref.UserID, state conversation.LoadState, messages ...conversation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := ref.RoomFor(me, counterpart)
	s.snapshot.Active = counterpart
	s.snapshot.ActiveRoom = room
	s.snapshot.Conversations[room] = conversation.ConversationView{
		Room:        room,
		Counterpart: counterpart,
		State:       state,
		Messages:    messages,
	}
}

// fakeConnection is a settable Connection.
type fakeConnection struct {
	mu      sync.Mutex
	state   realtime.State
	lastErr error
}

func (c *fakeConnection) State() realtime.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConnection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *fakeConnection) OnStateChange(func(realtime.State)) func() { return func() {} }

func summary(user ref.UserID, name, last string, offset time.Duration, pinned bool) portal.ConversationSummary {
	return portal.ConversationSummary{
		Counterpart: portal.User{ID: user, Name: name},
		LastMessage: &portal.Message{
			ID:          string(user) + "-last",
			SenderID:    user,
			RecipientID: me,
			Content:     last,
			CreatedAt:   baseTime.Add(offset),
		},
		Pinned: pinned,
	}
}

func message(id string, sender ref.UserID, content string, offset time.Duration) conversation.Message {
	recipient := bob
	if sender == bob {
		recipient = me
	}
	return conversation.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		CreatedAt:   baseTime.Add(offset),
		RoomID:      ref.RoomFor(sender, recipient),
	}
}

// runCommand executes cmd, expanding batches, and returns the messages
// produced within timeout.
func runCommand(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	results := make(chan []tea.Msg, 1)
	go func() {
		message := cmd()
		batch, ok := message.(tea.BatchMsg)
		if !ok {
			results <- []tea.Msg{message}
			return
		}
		var wg sync.WaitGroup
		var mu sync.Mutex
		var collected []tea.Msg
		for _, inner := range batch {
			if inner == nil {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				produced := inner()
				mu.Lock()
				collected = append(collected, produced)
				mu.Unlock()
			}()
		}
		wg.Wait()
		results <- collected
	}()
	select {
	case messages := <-results:
		return messages
	case <-time.After(5 * time.Second):
		t.Fatal("command did not complete")
		return nil
	}
}

func keyRunes(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}
