// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
	"github.com/alumnet-portal/chatsync/realtime"
)

// History is the REST side of the portal. *portal.Session implements it.
type History interface {
	Conversations(ctx context.Context) ([]portal.ConversationSummary, error)
	Messages(ctx context.Context, counterpart ref.UserID) ([]portal.Message, error)
	TogglePin(ctx context.Context, counterpart ref.UserID) (bool, error)
	DeleteConversation(ctx context.Context, counterpart ref.UserID) (bool, error)
}

// Channel is the event channel. *realtime.Manager implements it.
type Channel interface {
	State() realtime.State
	Send(event string, payload any, ack realtime.AckFunc)
	Subscribe(event string, handler realtime.Handler) (unsubscribe func())
	OnConnect(fn func()) (unsubscribe func())
}

// Cache persists confirmed transcripts between sessions so a reopened
// conversation shows its last known contents while the fetch runs.
type Cache interface {
	Load(ctx context.Context, room ref.RoomID) ([]portal.Message, bool, error)
	Save(ctx context.Context, room ref.RoomID, messages []portal.Message) error
	Forget(ctx context.Context, room ref.RoomID) error
}

// DefaultEchoTolerance is the default maximum distance between a
// pending message's local timestamp and its echo's server timestamp.
const DefaultEchoTolerance = 5 * time.Second

// Config configures a Store.
type Config struct {
	// Me is the signed-in user.
	Me ref.UserID

	History History
	Channel Channel

	// Cache is optional.
	Cache Cache

	// EchoTolerance defaults to DefaultEchoTolerance.
	EchoTolerance time.Duration

	// RefreshConcurrency bounds the per-conversation history fetches a
	// list refresh runs at once. Defaults to 4.
	RefreshConcurrency int

	// TemporaryID generates ids for pending messages. Defaults to
	// "temp_" followed by a random UUID.
	TemporaryID func() string

	Clock  clock.Clock
	Logger *slog.Logger
}

// LoadState is a conversation's position in its fetch lifecycle.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type conversationState struct {
	state    LoadState
	messages []Message
	err      error

	// fetched is set once a history fetch has been applied, so a
	// superseded reload can fall back to Loaded rather than Unloaded.
	fetched bool
}

// Store owns every conversation's messages, the unread counters, and
// the conversation list. All methods are safe for concurrent use.
type Store struct {
	me                 ref.UserID
	history            History
	channel            Channel
	tolerance          time.Duration
	refreshConcurrency int
	temporaryID        func() string
	clock              clock.Clock
	logger             *slog.Logger
	persister          *persister

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unbind []func()

	mu            sync.Mutex
	closed        bool
	generation    uint64
	active        ref.UserID
	activeRoom    ref.RoomID
	conversations map[ref.RoomID]*conversationState
	unread        map[ref.RoomID]int
	summaries     []portal.ConversationSummary
	listErr       error
	lastErr       error
	listeners     []*listener

	// seen holds recent confirmed ids per room for redelivery checks
	// while the room has no loaded transcript.
	seen map[ref.RoomID]*seenIDs

	refreshes  int
	eventSeq   uint64
	refreshLog []refreshEvent
}

// New creates a store and subscribes it to the channel's newMessage
// and messagesRead events and to its connect notifications.
func New(config Config) (*Store, error) {
	if config.Me.IsZero() {
		return nil, fmt.Errorf("conversation: Me is required")
	}
	if config.History == nil {
		return nil, fmt.Errorf("conversation: History is required")
	}
	if config.Channel == nil {
		return nil, fmt.Errorf("conversation: Channel is required")
	}

	tolerance := config.EchoTolerance
	if tolerance <= 0 {
		tolerance = DefaultEchoTolerance
	}
	concurrency := config.RefreshConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	temporaryID := config.TemporaryID
	if temporaryID == nil {
		temporaryID = newTemporaryID
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "conversation", "user_id", config.Me)

	ctx, cancel := context.WithCancel(context.Background())
	store := &Store{
		me:                 config.Me,
		history:            config.History,
		channel:            config.Channel,
		tolerance:          tolerance,
		refreshConcurrency: concurrency,
		temporaryID:        temporaryID,
		clock:              clk,
		logger:             logger,
		ctx:                ctx,
		cancel:             cancel,
		conversations:      make(map[ref.RoomID]*conversationState),
		unread:             make(map[ref.RoomID]int),
		seen:               make(map[ref.RoomID]*seenIDs),
	}
	if config.Cache != nil {
		store.persister = newPersister(config.Cache, logger)
	}

	store.unbind = []func(){
		config.Channel.Subscribe(portal.EventNewMessage, store.onNewMessage),
		config.Channel.Subscribe(portal.EventMessagesRead, store.onMessagesRead),
		config.Channel.OnConnect(store.onConnect),
	}
	return store, nil
}

// Close detaches from the channel, waits for background refreshes, and
// flushes pending cache writes.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, unbind := range s.unbind {
		unbind()
	}
	s.cancel()
	s.wg.Wait()
	if s.persister != nil {
		s.persister.close()
	}
}

// Me returns the signed-in user.
func (s *Store) Me() ref.UserID { return s.me }

// ActiveRoom returns the room of the active conversation, or "".
func (s *Store) ActiveRoom() ref.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// OpenConversation makes counterpart's conversation active and loads
// its history. The active pointer moves before any network call. The
// room's unread counter is zeroed and a markRead is emitted whether or
// not the fetch succeeds. A fetch that completes after another
// conversation was opened is discarded and OpenConversation returns nil.
func (s *Store) OpenConversation(ctx context.Context, counterpart ref.UserID) error {
	if counterpart.IsZero() {
		return fmt.Errorf("conversation: counterpart is required")
	}
	room := ref.RoomFor(s.me, counterpart)

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.active = counterpart
	s.activeRoom = room
	conversation := s.conversationLocked(room)
	conversation.state = StateLoading
	conversation.err = nil
	empty := len(conversation.messages) == 0
	s.noteReadLocked(room)
	s.mu.Unlock()
	s.publish(Change{Kind: ActiveChanged, Room: room})

	if s.channel.State() == realtime.Connected {
		s.channel.Send(portal.EventJoinRoom, portal.JoinRoomRequest{TargetUserID: counterpart}, nil)
	}

	if s.persister != nil && empty {
		s.preload(ctx, room, generation)
	}

	fetched, err := s.history.Messages(ctx, counterpart)

	s.mu.Lock()
	if s.generation != generation {
		if room != s.activeRoom && conversation.state == StateLoading {
			conversation.state = StateUnloaded
			if conversation.fetched {
				conversation.state = StateLoaded
			}
		}
		seen := s.seenLocked(room)
		for _, message := range fetched {
			seen.add(message.ID)
		}
		s.mu.Unlock()
		s.logger.Debug("discarding superseded history fetch", "room_id", room)
		// The counter was zeroed when the open started; the server
		// must hear about it even though the transcript is dropped.
		s.markRead(room)
		return nil
	}

	if err != nil {
		fetchErr := &FetchError{Op: "history", Room: room, Err: err}
		conversation.state = StateFailed
		conversation.err = fetchErr
		conversation.messages = pendingOnly(conversation.messages)
		s.noteReadLocked(room)
		s.lastErr = fetchErr
		s.mu.Unlock()

		s.logger.Warn("history fetch failed", "room_id", room, "error", err)
		s.markRead(room)
		s.publish(Change{Kind: FetchFailed, Room: room, Err: fetchErr})
		return fetchErr
	}

	history := make([]Message, len(fetched))
	for index, message := range fetched {
		history[index] = FromPortal(message)
	}
	conversation.messages = mergeHistory(history, conversation.messages, s.me, s.tolerance)
	markReadLocked(conversation.messages, s.me)
	conversation.state = StateLoaded
	conversation.fetched = true
	s.noteReadLocked(room)
	confirmed := confirmedPortal(conversation.messages)
	s.mu.Unlock()

	s.logger.Debug("conversation loaded", "room_id", room, "messages", len(confirmed))
	s.markRead(room)
	s.save(room, confirmed)
	s.publish(Change{Kind: MessagesChanged, Room: room})
	return nil
}

// RetryOpen refetches the active conversation if its last fetch failed.
func (s *Store) RetryOpen(ctx context.Context) error {
	s.mu.Lock()
	active := s.active
	var state LoadState
	if conversation := s.conversations[s.activeRoom]; conversation != nil {
		state = conversation.state
	}
	s.mu.Unlock()

	if active.IsZero() {
		return ErrNoActiveConversation
	}
	if state != StateFailed {
		return nil
	}
	return s.OpenConversation(ctx, active)
}

// Send appends text to the active conversation as a pending message and
// emits it. It fails synchronously, appending nothing, when text is
// blank, no conversation is active, or the channel is not Connected. A
// later server rejection or a drop before the ack removes the pending
// message and publishes a SendFailed change; success needs no action
// because the confirmation arrives as a newMessage push.
func (s *Store) Send(text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return &SendError{Err: ErrEmptyMessage}
	}

	s.mu.Lock()
	recipient, room := s.active, s.activeRoom
	if recipient.IsZero() {
		s.mu.Unlock()
		return &SendError{Err: ErrNoActiveConversation}
	}
	if s.channel.State() != realtime.Connected {
		s.mu.Unlock()
		sendErr := &SendError{Room: room, Err: realtime.ErrNotConnected}
		s.recordError(sendErr)
		return sendErr
	}

	pending := Message{
		ID:          s.temporaryID(),
		SenderID:    s.me,
		RecipientID: recipient,
		Content:     content,
		CreatedAt:   s.clock.Now(),
		RoomID:      room,
		Read:        true,
		Status:      Pending,
	}
	conversation := s.conversationLocked(room)
	conversation.messages, _ = insertOrdered(conversation.messages, pending)
	s.mu.Unlock()
	s.publish(Change{Kind: MessagesChanged, Room: room})

	s.channel.Send(portal.EventSendMessage, portal.SendMessageRequest{To: recipient, Content: content}, func(err error) {
		if err != nil {
			s.rollback(room, pending.ID, err)
		}
	})
	return nil
}

func (s *Store) rollback(room ref.RoomID, temporaryID string, cause error) {
	sendErr := &SendError{Room: room, MessageID: temporaryID, Err: cause}

	s.mu.Lock()
	if conversation := s.conversations[room]; conversation != nil {
		for index, message := range conversation.messages {
			if message.ID == temporaryID && message.Status == Pending {
				conversation.messages = append(conversation.messages[:index:index], conversation.messages[index+1:]...)
				break
			}
		}
	}
	s.lastErr = sendErr
	s.mu.Unlock()

	s.logger.Warn("send rolled back", "room_id", room, "message_id", temporaryID, "error", cause)
	s.publish(Change{Kind: SendFailed, Room: room, Err: sendErr})
}

// HandlePush reconciles one confirmed message delivered by the channel.
// Pushes for rooms without a loaded conversation only update the list
// preview and the unread counter.
func (s *Store) HandlePush(incoming portal.Message) Outcome {
	message := FromPortal(incoming)
	room := message.RoomID

	if message.SenderID != s.me && message.RecipientID != s.me {
		s.logger.Debug("ignoring push for another user", "room_id", room, "message_id", message.ID)
		return Outcome{Kind: Ignored, Room: room, Index: -1}
	}
	counterpart := message.RecipientID
	if counterpart == s.me {
		counterpart = message.SenderID
	}
	fromOther := message.SenderID != s.me

	s.mu.Lock()
	freshPreview := s.notePreviewLocked(counterpart, message)

	var outcome Outcome
	var confirmed []portal.Message
	markRead := false
	conversation := s.conversations[room]
	seen := s.seenLocked(room)
	if conversation == nil || conversation.state == StateUnloaded {
		outcome = Outcome{Kind: Unloaded, Room: room, Index: -1}
		if !freshPreview || seen.contains(message.ID) {
			outcome.Kind = DuplicateID
		} else if fromOther && message.RecipientID == s.me && !message.Read {
			s.unread[room]++
			outcome.UnreadIncremented = true
		}
	} else {
		conversation.messages, outcome = Reconcile(conversation.messages, message, s.me, s.tolerance)
		if outcome.Kind == Appended && fromOther {
			if room == s.activeRoom {
				conversation.messages[outcome.Index].Read = true
				markRead = true
			} else if !message.Read {
				s.unread[room]++
				outcome.UnreadIncremented = true
			}
		}
		if outcome.Inserted() {
			confirmed = confirmedPortal(conversation.messages)
		}
	}
	seen.add(message.ID)
	if outcome.Kind != DuplicateID && outcome.Kind != DuplicateContent {
		s.recordLocked(refreshEvent{
			room:        room,
			message:     &message,
			counterpart: counterpart,
			counted:     outcome.UnreadIncremented,
		})
	}
	s.mu.Unlock()

	s.logger.Debug("push reconciled",
		"room_id", room,
		"message_id", message.ID,
		"outcome", outcome.Kind.String(),
	)
	if markRead {
		s.markRead(room)
	}
	if confirmed != nil {
		s.save(room, confirmed)
	}
	switch {
	case outcome.Inserted():
		s.publish(Change{Kind: MessagesChanged, Room: room})
	case outcome.Kind == Unloaded:
		s.publish(Change{Kind: ListChanged, Room: room})
	}
	if outcome.UnreadIncremented {
		s.publish(Change{Kind: UnreadChanged, Room: room})
	}
	return outcome
}

// HandleMessagesRead clears the room's unread counter and marks loaded
// messages addressed to this user as read. The event usually means the
// room was read on another device.
func (s *Store) HandleMessagesRead(room ref.RoomID) {
	s.mu.Lock()
	s.noteReadLocked(room)
	if conversation := s.conversations[room]; conversation != nil {
		markReadLocked(conversation.messages, s.me)
	}
	for index := range s.summaries {
		last := s.summaries[index].LastMessage
		if last != nil && last.Room() == room && last.RecipientID == s.me {
			copied := *last
			copied.Read = true
			s.summaries[index].LastMessage = &copied
		}
	}
	s.mu.Unlock()
	s.publish(Change{Kind: UnreadChanged, Room: room})
}

// RefreshConversationList fetches the conversation list and recomputes
// every unread counter from each conversation's history. Conversations
// whose history fetch fails keep their previous counter. The active
// room's counter stays zero.
func (s *Store) RefreshConversationList(ctx context.Context) error {
	s.mu.Lock()
	start := s.beginRefreshLocked()
	s.mu.Unlock()

	summaries, err := s.history.Conversations(ctx)
	if err != nil {
		fetchErr := &FetchError{Op: "list", Err: err}
		s.mu.Lock()
		s.endRefreshLocked()
		s.listErr = fetchErr
		s.lastErr = fetchErr
		s.mu.Unlock()
		s.logger.Warn("conversation list fetch failed", "error", err)
		s.publish(Change{Kind: FetchFailed, Err: fetchErr})
		return fetchErr
	}

	tallies := s.countUnread(ctx, summaries)

	s.mu.Lock()
	previous := s.unread
	s.summaries = summaries
	s.listErr = nil
	s.unread = make(map[ref.RoomID]int, len(summaries))
	kept := make(map[ref.RoomID]bool)
	for _, summary := range summaries {
		room := ref.RoomFor(s.me, summary.Counterpart.ID)
		if tally, ok := tallies[room]; ok {
			s.unread[room] = tally.unread
			seen := s.seenLocked(room)
			for _, id := range tally.ids.order {
				seen.add(id)
			}
		} else if count, ok := previous[room]; ok {
			s.unread[room] = count
			kept[room] = true
		}
	}
	// Pushes and reads handled while the fetches ran.
	s.replayLocked(start, tallies, kept)
	s.endRefreshLocked()
	if s.activeRoom != "" {
		s.unread[s.activeRoom] = 0
	}
	s.mu.Unlock()

	s.logger.Debug("conversation list refreshed", "conversations", len(summaries))
	s.publish(Change{Kind: ListChanged})
	return nil
}

// roomTally is one conversation's unread count from a list refresh,
// along with the ids of the history it was counted from.
type roomTally struct {
	unread int
	ids    seenIDs
}

// countUnread fetches each conversation's history and counts unread
// messages addressed to this user. Failed fetches are absent from the
// result.
func (s *Store) countUnread(ctx context.Context, summaries []portal.ConversationSummary) map[ref.RoomID]roomTally {
	type result struct {
		room  ref.RoomID
		tally roomTally
		ok    bool
	}
	results := make([]result, len(summaries))
	semaphore := make(chan struct{}, s.refreshConcurrency)
	var wg sync.WaitGroup
	for index, summary := range summaries {
		counterpart := summary.Counterpart.ID
		results[index].room = ref.RoomFor(s.me, counterpart)
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			messages, err := s.history.Messages(ctx, counterpart)
			if err != nil {
				s.logger.Warn("unread count fetch failed", "room_id", results[index].room, "error", err)
				return
			}
			tally := &results[index].tally
			for _, message := range messages {
				tally.ids.add(message.ID)
				if message.RecipientID == s.me && !message.Read {
					tally.unread++
				}
			}
			results[index].ok = true
		}()
	}
	wg.Wait()

	tallies := make(map[ref.RoomID]roomTally, len(results))
	for _, entry := range results {
		if entry.ok {
			tallies[entry.room] = entry.tally
		}
	}
	return tallies
}

// TogglePin flips the conversation's pinned flag on the server and
// refreshes the list.
func (s *Store) TogglePin(ctx context.Context, counterpart ref.UserID) error {
	if _, err := s.history.TogglePin(ctx, counterpart); err != nil {
		return fmt.Errorf("conversation: toggling pin for %s: %w", counterpart, err)
	}
	return s.RefreshConversationList(ctx)
}

// DeleteConversation hides the conversation on the server, forgets it
// locally and in the cache, then refreshes the list. Deleting the
// active conversation clears the active pointer and invalidates its
// in-flight fetch.
func (s *Store) DeleteConversation(ctx context.Context, counterpart ref.UserID) error {
	if _, err := s.history.DeleteConversation(ctx, counterpart); err != nil {
		return fmt.Errorf("conversation: deleting conversation with %s: %w", counterpart, err)
	}
	room := ref.RoomFor(s.me, counterpart)

	s.mu.Lock()
	delete(s.conversations, room)
	delete(s.unread, room)
	delete(s.seen, room)
	for index, summary := range s.summaries {
		if summary.Counterpart.ID == counterpart {
			s.summaries = append(s.summaries[:index:index], s.summaries[index+1:]...)
			break
		}
	}
	wasActive := s.activeRoom == room
	if wasActive {
		s.generation++
		s.active = ""
		s.activeRoom = ""
	}
	s.mu.Unlock()

	s.forget(room)
	if wasActive {
		s.publish(Change{Kind: ActiveChanged, Room: room})
	}
	return s.RefreshConversationList(ctx)
}

func (s *Store) onNewMessage(event realtime.Event) {
	var message portal.Message
	if err := event.Decode(&message); err != nil {
		s.logger.Warn("malformed newMessage push", "error", err)
		return
	}
	s.HandlePush(message)
}

func (s *Store) onMessagesRead(event realtime.Event) {
	var payload portal.MessagesReadEvent
	if err := event.Decode(&payload); err != nil || payload.RoomID == "" {
		s.logger.Warn("malformed messagesRead push", "error", err)
		return
	}
	s.HandleMessagesRead(payload.RoomID)
}

// onConnect runs on the channel's goroutine after every handshake. It
// rejoins the active room at once and refreshes the list in the
// background so the reader is not held up by REST calls.
func (s *Store) onConnect() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active.IsZero() {
		s.channel.Send(portal.EventJoinRoom, portal.JoinRoomRequest{TargetUserID: active}, nil)
	}
	s.goBackground(func(ctx context.Context) {
		if err := s.RefreshConversationList(ctx); err != nil {
			s.logger.Debug("list refresh after connect failed", "error", err)
		}
	})
}

func (s *Store) goBackground(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// markRead tells the server the room was read. Dropped silently when
// the channel is down; the next open re-sends it.
func (s *Store) markRead(room ref.RoomID) {
	s.channel.Send(portal.EventMarkRead, portal.MarkReadRequest{RoomID: room}, nil)
}

func (s *Store) preload(ctx context.Context, room ref.RoomID, generation uint64) {
	cached, ok, err := s.persister.cache.Load(ctx, room)
	if err != nil {
		s.logger.Warn("transcript cache read failed", "room_id", room, "error", err)
		return
	}
	if !ok {
		return
	}
	messages := make([]Message, len(cached))
	for index, message := range cached {
		messages[index] = FromPortal(message)
	}
	sortMessages(messages)

	s.mu.Lock()
	conversation := s.conversations[room]
	if s.generation != generation || conversation == nil || conversation.state != StateLoading || len(conversation.messages) != 0 {
		s.mu.Unlock()
		return
	}
	conversation.messages = messages
	s.mu.Unlock()
	s.publish(Change{Kind: MessagesChanged, Room: room})
}

func (s *Store) save(room ref.RoomID, confirmed []portal.Message) {
	if s.persister != nil {
		s.persister.enqueue(room, cacheWrite{messages: confirmed})
	}
}

func (s *Store) forget(room ref.RoomID) {
	if s.persister != nil {
		s.persister.enqueue(room, cacheWrite{forget: true})
	}
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.publish(Change{Kind: SendFailed, Err: err})
}

func (s *Store) conversationLocked(room ref.RoomID) *conversationState {
	conversation := s.conversations[room]
	if conversation == nil {
		conversation = &conversationState{}
		s.conversations[room] = conversation
	}
	return conversation
}

// notePreviewLocked records message as its counterpart's latest
// message when it is newer than the current preview. It returns false
// when the preview already is this message.
func (s *Store) notePreviewLocked(counterpart ref.UserID, message Message) bool {
	preview := message.Portal()
	for index := range s.summaries {
		summary := &s.summaries[index]
		if summary.Counterpart.ID != counterpart {
			continue
		}
		if summary.LastMessage != nil && summary.LastMessage.ID == message.ID {
			return false
		}
		if summary.LastMessage == nil || !message.CreatedAt.Before(summary.LastMessage.CreatedAt) {
			summary.LastMessage = &preview
		}
		return true
	}
	s.summaries = append(s.summaries, portal.ConversationSummary{
		Counterpart: portal.User{ID: counterpart},
		LastMessage: &preview,
	})
	return true
}

func markReadLocked(messages []Message, me ref.UserID) {
	for index := range messages {
		if messages[index].RecipientID == me {
			messages[index].Read = true
		}
	}
}

func pendingOnly(messages []Message) []Message {
	var kept []Message
	for _, message := range messages {
		if message.Status == Pending {
			kept = append(kept, message)
		}
	}
	return kept
}

func confirmedPortal(messages []Message) []portal.Message {
	confirmed := make([]portal.Message, 0, len(messages))
	for _, message := range messages {
		if message.Status == Confirmed {
			confirmed = append(confirmed, message.Portal())
		}
	}
	return confirmed
}
