// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/lib/secret"
)

// Session is an authenticated view of the portal API.
type Session struct {
	client     *Client
	credential *secret.Buffer
}

// Conversations returns one summary per counterpart: GET /messages.
func (s *Session) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/messages", s.credential, nil)
	if err != nil {
		return nil, err
	}
	var summaries []ConversationSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("portal: decoding conversation list: %w", err)
	}
	return summaries, nil
}

// Messages returns the persisted history with a counterpart, ascending
// by CreatedAt: GET /messages/{userId}. The server already orders the
// list; the sort here keeps the guarantee for servers that do not.
func (s *Session) Messages(ctx context.Context, counterpart ref.UserID) ([]Message, error) {
	if counterpart.IsZero() {
		return nil, fmt.Errorf("portal: counterpart is required")
	}
	body, err := s.client.doRequest(ctx, http.MethodGet, "/messages/"+url.PathEscape(string(counterpart)), s.credential, nil)
	if err != nil {
		return nil, err
	}
	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("portal: decoding history with %s: %w", counterpart, err)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// TogglePin flips the pinned flag of the conversation with counterpart:
// POST /messages/{userId}/pin.
func (s *Session) TogglePin(ctx context.Context, counterpart ref.UserID) (bool, error) {
	return s.toggle(ctx, counterpart, "pin")
}

// DeleteConversation hides the conversation from the caller's list:
// POST /messages/{userId}/delete.
func (s *Session) DeleteConversation(ctx context.Context, counterpart ref.UserID) (bool, error) {
	return s.toggle(ctx, counterpart, "delete")
}

func (s *Session) toggle(ctx context.Context, counterpart ref.UserID, action string) (bool, error) {
	if counterpart.IsZero() {
		return false, fmt.Errorf("portal: counterpart is required")
	}
	path := "/messages/" + url.PathEscape(string(counterpart)) + "/" + action
	body, err := s.client.doRequest(ctx, http.MethodPost, path, s.credential, struct{}{})
	if err != nil {
		return false, err
	}
	var result ToggleResult
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("portal: decoding %s response: %w", action, err)
	}
	return result.Success, nil
}
