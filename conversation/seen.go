// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"github.com/alumnet-portal/chatsync/lib/ref"
)

// seenLimit bounds the confirmed ids remembered per room.
const seenLimit = 256

// seenIDs is a bounded set of confirmed message ids, oldest evicted
// first. Rooms without a loaded transcript have nothing else to
// recognize a redelivered push by.
type seenIDs struct {
	ids   map[string]struct{}
	order []string
}

func (s *seenIDs) contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *seenIDs) add(id string) {
	if id == "" || s.contains(id) {
		return
	}
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > seenLimit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Store) seenLocked(room ref.RoomID) *seenIDs {
	seen := s.seen[room]
	if seen == nil {
		seen = &seenIDs{}
		s.seen[room] = seen
	}
	return seen
}

// refreshEvent is a push or a read handled while a list refresh was in
// flight. The refresh replays them over the state it fetched so they
// are not lost to the swap.
type refreshEvent struct {
	seq  uint64
	room ref.RoomID

	// message is nil for a read.
	message     *Message
	counterpart ref.UserID
	counted     bool
}

// recordLocked logs an event for in-flight refreshes. A no-op when no
// refresh is running.
func (s *Store) recordLocked(event refreshEvent) {
	if s.refreshes == 0 {
		return
	}
	event.seq = s.eventSeq
	s.eventSeq++
	s.refreshLog = append(s.refreshLog, event)
}

// noteReadLocked zeroes the room's counter and records the read for
// in-flight refreshes.
func (s *Store) noteReadLocked(room ref.RoomID) {
	s.unread[room] = 0
	s.recordLocked(refreshEvent{room: room})
}

func (s *Store) beginRefreshLocked() uint64 {
	s.refreshes++
	return s.eventSeq
}

func (s *Store) endRefreshLocked() {
	s.refreshes--
	if s.refreshes == 0 {
		s.refreshLog = nil
	}
}

// replayLocked applies events logged since start over freshly fetched
// summaries and counters. Rooms in kept kept their previous counter,
// which already reflects those events. Elsewhere a counted push raises
// the counter unless the recounted history already held it.
func (s *Store) replayLocked(start uint64, tallies map[ref.RoomID]roomTally, kept map[ref.RoomID]bool) {
	for _, event := range s.refreshLog {
		if event.seq < start {
			continue
		}
		if event.message != nil {
			s.notePreviewLocked(event.counterpart, *event.message)
		}
		if kept[event.room] {
			continue
		}
		tally := tallies[event.room]
		switch {
		case event.message == nil:
			s.unread[event.room] = 0
		case !event.counted:
		case tally.ids.contains(event.message.ID):
		default:
			s.unread[event.room]++
		}
	}
}
