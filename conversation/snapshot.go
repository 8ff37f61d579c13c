// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// ChangeKind classifies a store mutation.
type ChangeKind int

const (
	ActiveChanged ChangeKind = iota
	MessagesChanged
	UnreadChanged
	ListChanged
	SendFailed
	FetchFailed
)

func (k ChangeKind) String() string {
	switch k {
	case ActiveChanged:
		return "active-changed"
	case MessagesChanged:
		return "messages-changed"
	case UnreadChanged:
		return "unread-changed"
	case ListChanged:
		return "list-changed"
	case SendFailed:
		return "send-failed"
	case FetchFailed:
		return "fetch-failed"
	default:
		return "unknown"
	}
}

// Change is published after every mutation. Room is empty for changes
// that are not about one room; Err is set for the failure kinds.
type Change struct {
	Kind ChangeKind
	Room ref.RoomID
	Err  error
}

type listener struct {
	fn func(Change)
}

// Subscribe registers fn for every Change. fn runs synchronously on
// the goroutine that made the change, after the store's lock is
// released; it may call Snapshot but should not block.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	entry := &listener{fn: fn}
	s.mu.Lock()
	s.listeners = append(s.listeners, entry)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for index, candidate := range s.listeners {
			if candidate == entry {
				s.listeners = append(s.listeners[:index:index], s.listeners[index+1:]...)
				return
			}
		}
	}
}

func (s *Store) publish(change Change) {
	s.mu.Lock()
	listeners := append([]*listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, entry := range listeners {
		entry.fn(change)
	}
}

// ConversationView is a copy of one conversation's state.
type ConversationView struct {
	Room        ref.RoomID
	Counterpart ref.UserID
	State       LoadState
	Messages    []Message
	Err         error
}

// Snapshot is a deep copy of the store's state at one instant.
type Snapshot struct {
	Me            ref.UserID
	Active        ref.UserID
	ActiveRoom    ref.RoomID
	Conversations map[ref.RoomID]ConversationView
	Unread        map[ref.RoomID]int
	Summaries     []portal.ConversationSummary
	ListErr       error
	LastErr       error
}

// ActiveConversation returns the active conversation's view. The
// second result is false when nothing is active.
func (s Snapshot) ActiveConversation() (ConversationView, bool) {
	if s.ActiveRoom == "" {
		return ConversationView{}, false
	}
	view, ok := s.Conversations[s.ActiveRoom]
	if !ok {
		view = ConversationView{Room: s.ActiveRoom, Counterpart: s.Active}
	}
	return view, true
}

// TotalUnread sums every room's counter.
func (s Snapshot) TotalUnread() int {
	total := 0
	for _, count := range s.Unread {
		total += count
	}
	return total
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		Me:            s.me,
		Active:        s.active,
		ActiveRoom:    s.activeRoom,
		Conversations: make(map[ref.RoomID]ConversationView, len(s.conversations)),
		Unread:        make(map[ref.RoomID]int, len(s.unread)),
		Summaries:     make([]portal.ConversationSummary, len(s.summaries)),
		ListErr:       s.listErr,
		LastErr:       s.lastErr,
	}
	for room, conversation := range s.conversations {
		counterpart, _ := room.Counterpart(s.me)
		snapshot.Conversations[room] = ConversationView{
			Room:        room,
			Counterpart: counterpart,
			State:       conversation.state,
			Messages:    cloneMessages(conversation.messages),
			Err:         conversation.err,
		}
	}
	for room, count := range s.unread {
		if count > 0 {
			snapshot.Unread[room] = count
		}
	}
	for index, summary := range s.summaries {
		if summary.LastMessage != nil {
			last := *summary.LastMessage
			summary.LastMessage = &last
		}
		snapshot.Summaries[index] = summary
	}
	return snapshot
}
