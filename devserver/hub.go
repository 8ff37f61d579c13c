// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
	"github.com/alumnet-portal/chatsync/realtime"
)

var errHubStopped = errors.New("devserver: hub stopped")

type inboundFrame struct {
	client *client
	frame  codec.Frame
}

// room is one direct conversation.
type room struct {
	id       ref.RoomID
	users    [2]ref.UserID
	messages []portal.Message
	pinned   map[ref.UserID]bool

	// hidden counts the messages a user deleted: they see
	// messages[hidden[user]:]. A message sent after a delete makes the
	// conversation reappear with only the new messages.
	hidden map[ref.UserID]int
}

func (r *room) visible(user ref.UserID) []portal.Message {
	return r.messages[r.hidden[user]:]
}

// hub owns every piece of server state. Its fields below the channels
// are only touched from run.
type hub struct {
	clock  clock.Clock
	logger *slog.Logger

	join    chan *client
	part    chan *client
	inbound chan inboundFrame
	calls   chan func()
	done    chan struct{}

	users   map[ref.UserID]portal.User
	tokens  map[string]ref.UserID
	clients map[ref.UserID]map[*client]struct{}
	joined  map[ref.RoomID]map[*client]struct{}
	rooms   map[ref.RoomID]*room
}

func newHub(config Config) *hub {
	h := &hub{
		clock:   config.Clock,
		logger:  config.Logger,
		join:    make(chan *client),
		part:    make(chan *client),
		inbound: make(chan inboundFrame),
		calls:   make(chan func()),
		done:    make(chan struct{}),
		users:   make(map[ref.UserID]portal.User, len(config.Accounts)),
		tokens:  make(map[string]ref.UserID, len(config.Accounts)),
		clients: make(map[ref.UserID]map[*client]struct{}),
		joined:  make(map[ref.RoomID]map[*client]struct{}),
		rooms:   make(map[ref.RoomID]*room),
	}
	for _, account := range config.Accounts {
		h.users[account.User.ID] = account.User
		h.tokens[account.Token] = account.User.ID
	}
	return h
}

// run is the hub loop. When ctx ends every client is closed and the
// channel methods start failing.
func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, connections := range h.clients {
				for c := range connections {
					h.drop(c)
				}
			}
			return

		case c := <-h.join:
			if h.clients[c.user] == nil {
				h.clients[c.user] = make(map[*client]struct{})
			}
			h.clients[c.user][c] = struct{}{}
			h.logger.Info("client connected", "user_id", c.user, "codec", c.codec.Format(), "connections", len(h.clients[c.user]))
			h.emit(c, realtime.EventConnect, 0, connectPayload{UserID: c.user})

		case c := <-h.part:
			if _, ok := h.clients[c.user][c]; ok {
				h.drop(c)
				h.logger.Info("client disconnected", "user_id", c.user)
			}

		case in := <-h.inbound:
			if _, ok := h.clients[in.client.user][in.client]; ok {
				h.handle(in.client, in.frame)
			}

		case fn := <-h.calls:
			fn()
		}
	}
}

type connectPayload struct {
	UserID ref.UserID `json:"userId"`
}

// enter registers c with the hub. It returns false once the hub has
// stopped.
func (h *hub) enter(c *client) bool {
	select {
	case h.join <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) leave(c *client) {
	select {
	case h.part <- c:
	case <-h.done:
	}
}

func (h *hub) deliver(in inboundFrame) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

// call runs fn on the hub goroutine and waits for it.
func (h *hub) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(finished) }:
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// drop removes c from every index and closes its queue. Frames already
// queued are still written.
func (h *hub) drop(c *client) {
	connections := h.clients[c.user]
	if _, ok := connections[c]; !ok {
		return
	}
	delete(connections, c)
	if len(connections) == 0 {
		delete(h.clients, c.user)
	}
	for roomID, members := range h.joined {
		delete(members, c)
		if len(members) == 0 {
			delete(h.joined, roomID)
		}
	}
	close(c.send)
}

// emit queues one frame for c. A client whose queue is full is
// dropped rather than allowed to stall the hub.
func (h *hub) emit(c *client, event string, ackID uint64, data any) {
	payload, err := c.codec.EncodeFrame(event, ackID, data)
	if err != nil {
		h.logger.Error("encoding frame", "event", event, "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("dropping slow client", "user_id", c.user, "event", event)
		h.drop(c)
	}
}

func (h *hub) ack(c *client, ackID uint64, failure string) {
	if ackID == 0 {
		if failure != "" {
			h.logger.Debug("unacknowledged request failed", "user_id", c.user, "reason", failure)
		}
		return
	}
	h.emit(c, realtime.EventAck, ackID, portal.AckPayload{Error: failure})
}

func (h *hub) handle(c *client, frame codec.Frame) {
	switch frame.Event {
	case portal.EventSendMessage:
		var request portal.SendMessageRequest
		if err := c.codec.DecodeData(frame.Data, &request); err != nil {
			h.ack(c, frame.AckID, "malformed sendMessage payload")
			return
		}
		h.ack(c, frame.AckID, h.sendMessage(c.user, request))

	case portal.EventJoinRoom:
		var request portal.JoinRoomRequest
		if err := c.codec.DecodeData(frame.Data, &request); err != nil || request.TargetUserID.IsZero() {
			h.ack(c, frame.AckID, "malformed joinRoom payload")
			return
		}
		roomID := ref.RoomFor(c.user, request.TargetUserID)
		if h.joined[roomID] == nil {
			h.joined[roomID] = make(map[*client]struct{})
		}
		h.joined[roomID][c] = struct{}{}
		h.logger.Debug("joined room", "user_id", c.user, "room_id", roomID)
		h.ack(c, frame.AckID, "")

	case portal.EventMarkRead:
		var request portal.MarkReadRequest
		if err := c.codec.DecodeData(frame.Data, &request); err != nil || request.RoomID.IsZero() {
			h.ack(c, frame.AckID, "malformed markRead payload")
			return
		}
		h.ack(c, frame.AckID, h.markRead(c, request.RoomID))

	default:
		h.logger.Debug("ignoring unknown event", "user_id", c.user, "event", frame.Event)
		h.ack(c, frame.AckID, "unknown event "+frame.Event)
	}
}

// sendMessage stores a message and pushes it to both participants'
// connections and to every connection that joined the room. It
// returns the rejection reason, or "" on success.
func (h *hub) sendMessage(sender ref.UserID, request portal.SendMessageRequest) string {
	if strings.TrimSpace(request.Content) == "" {
		return "content is required"
	}
	if request.To == sender {
		return "cannot message yourself"
	}
	if _, ok := h.users[request.To]; !ok {
		return "unknown recipient " + string(request.To)
	}

	message := portal.Message{
		ID:          uuid.NewString(),
		SenderID:    sender,
		RecipientID: request.To,
		Content:     request.Content,
		CreatedAt:   h.clock.Now().UTC().Truncate(time.Millisecond),
		RoomID:      ref.RoomFor(sender, request.To),
	}
	conversation := h.room(sender, request.To)
	conversation.messages = append(conversation.messages, message)
	h.logger.Debug("message stored", "room_id", message.RoomID, "message_id", message.ID)

	targets := make(map[*client]struct{})
	for _, user := range conversation.users {
		for c := range h.clients[user] {
			targets[c] = struct{}{}
		}
	}
	for c := range h.joined[message.RoomID] {
		targets[c] = struct{}{}
	}
	for c := range targets {
		h.emit(c, portal.EventNewMessage, 0, message)
	}
	return ""
}

// markRead flags the room's messages addressed to the reader and tells
// the reader's other connections.
func (h *hub) markRead(reader *client, roomID ref.RoomID) string {
	if !roomID.Includes(reader.user) {
		return "not a participant of " + string(roomID)
	}
	if conversation := h.rooms[roomID]; conversation != nil {
		for index := range conversation.messages {
			if conversation.messages[index].RecipientID == reader.user {
				conversation.messages[index].Read = true
			}
		}
	}
	for c := range h.clients[reader.user] {
		if c != reader {
			h.emit(c, portal.EventMessagesRead, 0, portal.MessagesReadEvent{RoomID: roomID})
		}
	}
	return ""
}

func (h *hub) room(a, b ref.UserID) *room {
	id := ref.RoomFor(a, b)
	conversation := h.rooms[id]
	if conversation == nil {
		conversation = &room{
			id:     id,
			users:  [2]ref.UserID{a, b},
			pinned: make(map[ref.UserID]bool),
			hidden: make(map[ref.UserID]int),
		}
		h.rooms[id] = conversation
	}
	return conversation
}

func (h *hub) authenticate(ctx context.Context, token string) (portal.User, bool, error) {
	var user portal.User
	var found bool
	err := h.call(ctx, func() {
		var id ref.UserID
		id, found = h.tokens[token]
		user = h.users[id]
	})
	return user, found, err
}

// conversations is GET /messages for user: every room with a visible
// message, most recent first.
func (h *hub) conversations(ctx context.Context, user ref.UserID) ([]portal.ConversationSummary, error) {
	summaries := []portal.ConversationSummary{}
	err := h.call(ctx, func() {
		for _, conversation := range h.rooms {
			counterpart, ok := conversation.id.Counterpart(user)
			if !ok {
				continue
			}
			visible := conversation.visible(user)
			if len(visible) == 0 {
				continue
			}
			last := visible[len(visible)-1]
			profile, ok := h.users[counterpart]
			if !ok {
				profile = portal.User{ID: counterpart}
			}
			summaries = append(summaries, portal.ConversationSummary{
				Counterpart: profile,
				LastMessage: &last,
				Pinned:      conversation.pinned[user],
			})
		}
	})
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, err
}

// history is GET /messages/{userId}.
func (h *hub) history(ctx context.Context, user, counterpart ref.UserID) ([]portal.Message, error) {
	messages := []portal.Message{}
	err := h.call(ctx, func() {
		if conversation := h.rooms[ref.RoomFor(user, counterpart)]; conversation != nil {
			messages = append(messages, conversation.visible(user)...)
		}
	})
	return messages, err
}

func (h *hub) togglePin(ctx context.Context, user, counterpart ref.UserID) (bool, error) {
	var pinned bool
	err := h.call(ctx, func() {
		conversation := h.room(user, counterpart)
		conversation.pinned[user] = !conversation.pinned[user]
		pinned = conversation.pinned[user]
	})
	return pinned, err
}

// deleteConversation hides the room's current messages from user only.
func (h *hub) deleteConversation(ctx context.Context, user, counterpart ref.UserID) error {
	return h.call(ctx, func() {
		conversation := h.room(user, counterpart)
		conversation.hidden[user] = len(conversation.messages)
		delete(conversation.pinned, user)
	})
}

// revoke forgets token and disconnects its user's connections with an
// auth disconnect frame. It reports whether the token was known.
func (h *hub) revoke(ctx context.Context, token string) (bool, error) {
	var found bool
	err := h.call(ctx, func() {
		var user ref.UserID
		user, found = h.tokens[token]
		if !found {
			return
		}
		delete(h.tokens, token)
		for c := range h.clients[user] {
			h.emit(c, realtime.EventDisconnect, 0, realtime.ConnectErrorPayload{Reason: realtime.ReasonAuth, Message: "session revoked"})
			h.drop(c)
		}
		h.logger.Info("token revoked", "user_id", user)
	})
	return found, err
}
