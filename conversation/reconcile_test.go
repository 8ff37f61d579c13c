// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/alumnet-portal/chatsync/lib/ref"
)

var (
	me       = ref.UserID("alice")
	bob      = ref.UserID("bob")
	carol    = ref.UserID("carol")
	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

const tolerance = 5 * time.Second

func at(offset time.Duration) time.Time { return baseTime.Add(offset) }

func confirmed(id string, sender, recipient ref.UserID, content string, offset time.Duration) Message {
	return Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		CreatedAt:   at(offset),
		RoomID:      ref.RoomFor(sender, recipient),
		Status:      Confirmed,
	}
}

func pending(id string, recipient ref.UserID, content string, offset time.Duration) Message {
	message := confirmed(id, me, recipient, content, offset)
	message.Status = Pending
	return message
}

func ids(messages []Message) []string {
	result := make([]string, len(messages))
	for index, message := range messages {
		result[index] = message.ID
	}
	return result
}

func requireIDs(t *testing.T, messages []Message, want ...string) {
	t.Helper()
	got := ids(messages)
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func requireSorted(t *testing.T, messages []Message) {
	t.Helper()
	for index := 1; index < len(messages); index++ {
		if messages[index].CreatedAt.Before(messages[index-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v", index, ids(messages))
		}
	}
}

func TestReconcileBranches(t *testing.T) {
	tests := []struct {
		name       string
		existing   []Message
		incoming   Message
		wantKind   OutcomeKind
		wantIDs    []string
		wantIndex  int
		wantRetire string
	}{
		{
			name:      "duplicate id",
			existing:  []Message{confirmed("m1", bob, me, "hi", 0)},
			incoming:  confirmed("m1", bob, me, "hi", 0),
			wantKind:  DuplicateID,
			wantIDs:   []string{"m1"},
			wantIndex: 0,
		},
		{
			name:       "echo replaces pending in place",
			existing:   []Message{confirmed("m1", bob, me, "hi", 0), pending("temp_1", bob, "hello", time.Second), confirmed("m2", bob, me, "later", 3*time.Second)},
			incoming:   confirmed("m42", me, bob, "hello", time.Second+50*time.Millisecond),
			wantKind:   EchoReplaced,
			wantIDs:    []string{"m1", "m42", "m2"},
			wantIndex:  1,
			wantRetire: "temp_1",
		},
		{
			name:       "echo matches trimmed content",
			existing:   []Message{pending("temp_1", bob, "hello", 0)},
			incoming:   confirmed("m42", me, bob, "  hello\n", 2*time.Second),
			wantKind:   EchoReplaced,
			wantIDs:    []string{"m42"},
			wantIndex:  0,
			wantRetire: "temp_1",
		},
		{
			name:      "echo outside tolerance is appended",
			existing:  []Message{pending("temp_1", bob, "hello", 0)},
			incoming:  confirmed("m42", me, bob, "hello", 10*time.Second),
			wantKind:  Appended,
			wantIDs:   []string{"temp_1", "m42"},
			wantIndex: 1,
		},
		{
			name:      "own message duplicate content",
			existing:  []Message{confirmed("m7", me, bob, "hello", 0)},
			incoming:  confirmed("m8", me, bob, "hello", time.Second),
			wantKind:  DuplicateContent,
			wantIDs:   []string{"m7"},
			wantIndex: 0,
		},
		{
			name:      "own message from another device appended",
			existing:  []Message{confirmed("m7", bob, me, "hey", 0)},
			incoming:  confirmed("m8", me, bob, "sent from phone", time.Second),
			wantKind:  Appended,
			wantIDs:   []string{"m7", "m8"},
			wantIndex: 1,
		},
		{
			name:      "counterpart duplicate content",
			existing:  []Message{confirmed("m1", bob, me, "ping", 0)},
			incoming:  confirmed("m2", bob, me, "ping", 2*time.Second),
			wantKind:  DuplicateContent,
			wantIDs:   []string{"m1"},
			wantIndex: 0,
		},
		{
			name:      "counterpart same content from me is not a duplicate",
			existing:  []Message{confirmed("m1", me, bob, "ping", 0)},
			incoming:  confirmed("m2", bob, me, "ping", time.Second),
			wantKind:  Appended,
			wantIDs:   []string{"m1", "m2"},
			wantIndex: 1,
		},
		{
			name:      "counterpart message is not matched against pending",
			existing:  []Message{pending("temp_1", bob, "ping", 0)},
			incoming:  confirmed("m2", bob, me, "ping", 0),
			wantKind:  Appended,
			wantIDs:   []string{"temp_1", "m2"},
			wantIndex: 1,
		},
		{
			name:      "out of order arrival is inserted by timestamp",
			existing:  []Message{confirmed("m1", bob, me, "one", 0), confirmed("m3", bob, me, "three", 20*time.Second)},
			incoming:  confirmed("m2", bob, me, "two", 10*time.Second),
			wantKind:  Appended,
			wantIDs:   []string{"m1", "m2", "m3"},
			wantIndex: 1,
		},
		{
			name:      "equal timestamps keep arrival order",
			existing:  []Message{confirmed("m1", bob, me, "one", 0)},
			incoming:  confirmed("m2", bob, me, "two", 0),
			wantKind:  Appended,
			wantIDs:   []string{"m1", "m2"},
			wantIndex: 1,
		},
		{
			name:      "empty conversation",
			incoming:  confirmed("m1", bob, me, "first", 0),
			wantKind:  Appended,
			wantIDs:   []string{"m1"},
			wantIndex: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			before := ids(test.existing)
			result, outcome := Reconcile(test.existing, test.incoming, me, tolerance)

			if outcome.Kind != test.wantKind {
				t.Errorf("kind = %s, want %s", outcome.Kind, test.wantKind)
			}
			if outcome.Index != test.wantIndex {
				t.Errorf("index = %d, want %d", outcome.Index, test.wantIndex)
			}
			if outcome.ReplacedID != test.wantRetire {
				t.Errorf("replaced = %q, want %q", outcome.ReplacedID, test.wantRetire)
			}
			if outcome.Room != ref.RoomFor(me, bob) {
				t.Errorf("room = %q", outcome.Room)
			}
			requireIDs(t, result, test.wantIDs...)
			requireSorted(t, result)
			requireIDs(t, test.existing, before...)
		})
	}
}

func TestReconcileEchoRepositionsWhenServerTimeMovesIt(t *testing.T) {
	existing := []Message{
		pending("temp_1", bob, "hello", 0),
		confirmed("m1", bob, me, "crossed", 2*time.Second),
	}
	result, outcome := Reconcile(existing, confirmed("m42", me, bob, "hello", 3*time.Second), me, tolerance)
	if outcome.Kind != EchoReplaced {
		t.Fatalf("kind = %s", outcome.Kind)
	}
	requireIDs(t, result, "m1", "m42")
	if outcome.Index != 1 {
		t.Errorf("index = %d, want 1", outcome.Index)
	}
	if result[1].Status != Confirmed {
		t.Errorf("replacement status = %s", result[1].Status)
	}
}

func TestReconcilePairsIdenticalSendsInOrder(t *testing.T) {
	messages := []Message{
		pending("temp_1", bob, "ok", 0),
		pending("temp_2", bob, "ok", 100*time.Millisecond),
	}
	messages, first := Reconcile(messages, confirmed("m1", me, bob, "ok", 50*time.Millisecond), me, tolerance)
	if first.ReplacedID != "temp_1" {
		t.Errorf("first echo replaced %q, want temp_1", first.ReplacedID)
	}
	messages, second := Reconcile(messages, confirmed("m2", me, bob, "ok", 150*time.Millisecond), me, tolerance)
	if second.Kind != EchoReplaced || second.ReplacedID != "temp_2" {
		t.Errorf("second echo = %s replacing %q, want temp_2", second.Kind, second.ReplacedID)
	}
	requireIDs(t, messages, "m1", "m2")
}

func TestReconcileIdempotent(t *testing.T) {
	messages := []Message{confirmed("m1", bob, me, "hi", 0), pending("temp_1", bob, "yo", time.Second)}
	push := confirmed("m9", me, bob, "yo", time.Second+time.Millisecond)

	once, _ := Reconcile(messages, push, me, tolerance)
	twice, outcome := Reconcile(once, push, me, tolerance)
	if outcome.Kind != DuplicateID {
		t.Errorf("second application = %s, want duplicate-id", outcome.Kind)
	}
	requireIDs(t, twice, ids(once)...)
}

// Replaying the same pushes in any order, each delivered one or more
// times, never leaves two entries with the same confirmed id.
func TestReconcileNoDuplicateIDsUnderReordering(t *testing.T) {
	pushes := []Message{
		confirmed("m1", bob, me, "one", 0),
		confirmed("m2", me, bob, "two", time.Second),
		confirmed("m3", bob, me, "three", 30*time.Second),
		confirmed("m4", me, bob, "four", 31*time.Second),
		confirmed("m5", bob, me, "five", 60*time.Second),
	}
	random := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		var deliveries []Message
		for _, push := range pushes {
			for copies := 1 + random.IntN(3); copies > 0; copies-- {
				deliveries = append(deliveries, push)
			}
		}
		random.Shuffle(len(deliveries), func(i, j int) { deliveries[i], deliveries[j] = deliveries[j], deliveries[i] })

		messages := []Message{pending("temp_a", bob, "two", time.Second-20*time.Millisecond)}
		for _, delivery := range deliveries {
			messages, _ = Reconcile(messages, delivery, me, tolerance)
		}

		seen := make(map[string]bool)
		for _, message := range messages {
			if message.Status == Confirmed && seen[message.ID] {
				t.Fatalf("round %d: duplicate id %s in %v", round, message.ID, ids(messages))
			}
			seen[message.ID] = true
		}
		requireIDs(t, messages, "m1", "m2", "m3", "m4", "m5")
	}
}

func TestMergeHistory(t *testing.T) {
	fetched := []Message{
		confirmed("m3", bob, me, "three", 3*time.Second),
		confirmed("m1", bob, me, "one", time.Second),
		confirmed("m2", me, bob, "echoed", 2*time.Second),
		{ID: "temp_stale", SenderID: me, RecipientID: bob, Content: "leftover", CreatedAt: at(4 * time.Second)},
	}
	local := []Message{
		pending("temp_1", bob, "echoed", 2*time.Second-100*time.Millisecond),
		pending("temp_2", bob, "still in flight", 5*time.Second),
		confirmed("m4", bob, me, "pushed during fetch", 4*time.Second),
		confirmed("m1", bob, me, "one", time.Second),
	}

	merged := mergeHistory(fetched, local, me, tolerance)
	requireIDs(t, merged, "m1", "m2", "m3", "m4", "temp_2")
	requireSorted(t, merged)
}

func TestMessageHelpers(t *testing.T) {
	if !pending("temp_9", bob, "x", 0).IsTemporary() {
		t.Error("temp_ id should be temporary")
	}
	if confirmed("m1", bob, me, "x", 0).IsTemporary() {
		t.Error("server id should not be temporary")
	}
	if id := newTemporaryID(); len(id) <= len(TemporaryPrefix) || id[:len(TemporaryPrefix)] != TemporaryPrefix {
		t.Errorf("newTemporaryID() = %q", id)
	}
	if Pending.String() != "pending" || Confirmed.String() != "confirmed" {
		t.Error("unexpected Status strings")
	}
}
