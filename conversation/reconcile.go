// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/alumnet-portal/chatsync/lib/ref"
)

// Reconcile merges one confirmed push into a loaded conversation and
// returns the new list with the branch taken. The input slice is not
// modified. Branches are tried in order:
//
//  1. a message with the same confirmed id exists: DuplicateID;
//  2. the push is from me and a pending message from me with the same
//     trimmed content lies within tolerance of the server timestamp:
//     that pending message is replaced, EchoReplaced;
//  3. a confirmed message with the same sender, the same trimmed
//     content, and a timestamp within tolerance exists:
//     DuplicateContent;
//  4. otherwise the message is inserted in order: Appended.
//
// Among several matching pending messages the earliest in the list is
// chosen, which pairs rapid identical sends with their echoes in send
// order. The result is always sorted by CreatedAt with ties kept in
// insertion order. Unread bookkeeping is the caller's job.
func Reconcile(messages []Message, incoming Message, me ref.UserID, tolerance time.Duration) ([]Message, Outcome) {
	incoming.Status = Confirmed
	if incoming.RoomID == "" {
		incoming.RoomID = ref.RoomFor(incoming.SenderID, incoming.RecipientID)
	}
	outcome := Outcome{Room: incoming.RoomID, Index: -1}

	for index, existing := range messages {
		if existing.Status == Confirmed && existing.ID == incoming.ID {
			outcome.Kind = DuplicateID
			outcome.Index = index
			return messages, outcome
		}
	}

	content := strings.TrimSpace(incoming.Content)

	if incoming.SenderID == me {
		for index, existing := range messages {
			if existing.Status != Pending || existing.SenderID != me {
				continue
			}
			if strings.TrimSpace(existing.Content) != content {
				continue
			}
			if !within(existing.CreatedAt, incoming.CreatedAt, tolerance) {
				continue
			}
			result := cloneMessages(messages)
			result[index] = incoming
			outcome.Kind = EchoReplaced
			outcome.ReplacedID = existing.ID
			outcome.Index = settle(result, index)
			return result, outcome
		}
	}

	for index, existing := range messages {
		if existing.Status != Confirmed || existing.SenderID != incoming.SenderID {
			continue
		}
		if strings.TrimSpace(existing.Content) == content && within(existing.CreatedAt, incoming.CreatedAt, tolerance) {
			outcome.Kind = DuplicateContent
			outcome.Index = index
			return messages, outcome
		}
	}

	result, index := insertOrdered(messages, incoming)
	outcome.Kind = Appended
	outcome.Index = index
	return result, outcome
}

func within(a, b time.Time, tolerance time.Duration) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

// insertOrdered returns a copy of messages with message inserted after
// every entry whose CreatedAt is not later than its own. Arrivals are
// mostly causal, so the scan runs from the tail.
func insertOrdered(messages []Message, message Message) ([]Message, int) {
	position := len(messages)
	for position > 0 && messages[position-1].CreatedAt.After(message.CreatedAt) {
		position--
	}
	result := make([]Message, 0, len(messages)+1)
	result = append(result, messages[:position]...)
	result = append(result, message)
	result = append(result, messages[position:]...)
	return result, position
}

// settle moves the entry at index to restore timestamp order after its
// CreatedAt changed, and returns its new position. A replacement
// keeps its slot whenever that slot is still ordered.
func settle(messages []Message, index int) int {
	for index > 0 && messages[index-1].CreatedAt.After(messages[index].CreatedAt) {
		messages[index-1], messages[index] = messages[index], messages[index-1]
		index--
	}
	for index < len(messages)-1 && messages[index].CreatedAt.After(messages[index+1].CreatedAt) {
		messages[index], messages[index+1] = messages[index+1], messages[index]
		index++
	}
	return index
}

// sortMessages orders by CreatedAt, keeping the input order for ties.
func sortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// mergeHistory replaces a conversation's contents with a fetched
// history while keeping what arrived locally during the fetch:
// confirmed pushes the snapshot predates, and pending sends whose echo
// it does not contain. Temporary entries in the fetched list are
// dropped.
func mergeHistory(fetched, local []Message, me ref.UserID, tolerance time.Duration) []Message {
	history := make([]Message, 0, len(fetched)+len(local))
	for _, message := range fetched {
		if message.IsTemporary() {
			continue
		}
		message.Status = Confirmed
		history = append(history, message)
	}
	sortMessages(history)

	claimed := make([]bool, len(history))
	var extra []Message
	for _, message := range local {
		switch message.Status {
		case Confirmed:
			if !containsID(history, message.ID) && !containsID(extra, message.ID) {
				extra = append(extra, message)
			}
		case Pending:
			if echo := findEcho(history, claimed, message, me, tolerance); echo >= 0 {
				claimed[echo] = true
				continue
			}
			extra = append(extra, message)
		}
	}

	for _, message := range extra {
		history, _ = insertOrdered(history, message)
	}
	return history
}

func containsID(messages []Message, id string) bool {
	return slices.ContainsFunc(messages, func(candidate Message) bool { return candidate.ID == id })
}

// findEcho returns the index of an unclaimed confirmed message in
// history that confirms pending, or -1.
func findEcho(history []Message, claimed []bool, pending Message, me ref.UserID, tolerance time.Duration) int {
	content := strings.TrimSpace(pending.Content)
	for index, candidate := range history {
		if claimed[index] || candidate.Status != Confirmed || candidate.SenderID != me {
			continue
		}
		if strings.TrimSpace(candidate.Content) == content && within(candidate.CreatedAt, pending.CreatedAt, tolerance) {
			return index
		}
	}
	return -1
}
