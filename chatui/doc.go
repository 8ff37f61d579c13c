// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal chat surface: a bubbletea program
// with the conversation list on the left and the active transcript
// with its composer on the right.
//
// The model never owns chat state. It renders [conversation.Snapshot]
// values taken from the store after each change notification, and
// forwards user intents (open, send, pin, delete, retry) back to the
// store. Connectivity comes from the realtime manager's state
// notifications; the composer is disabled whenever the channel is not
// Connected.
//
// Message bodies are rendered as inline markdown with goldmark, fenced
// code highlighted by chroma. The conversation list filter uses fzf's
// matcher.
package chatui
