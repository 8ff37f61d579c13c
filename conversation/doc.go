// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation is the chat client's state store. It merges
// three sources into one ordered, de-duplicated message list per
// conversation:
//
//   - history fetched over REST when a conversation is opened,
//   - optimistic messages appended locally before the server confirms
//     them,
//   - confirmed messages pushed over the event channel at any time.
//
// [Reconcile] is the merge rule for a single push, as a pure function
// returning an [Outcome] that names which branch applied: a repeated
// id, the echo of a pending send, a content duplicate, or a genuine new
// message. [Store] applies it under one mutex so every handler runs to
// completion before the next, and tracks the active conversation,
// unread counters, and the conversation list.
//
// Opening a conversation increments a generation counter. A history
// fetch applies its result only if the generation it was issued under
// is still current, so a slow fetch for a conversation the user has
// already left cannot overwrite the one now on screen.
//
// Errors never cross the store boundary as panics. Operations return
// *SendError or *FetchError, and the same error is published to
// subscribers as a [Change] so the chat surface can render it inline.
package conversation
