// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"sort"

	"github.com/alumnet-portal/chatsync/portal"
)

// OrderSummaries sorts the conversation list for display: pinned
// conversations first, then by most recent message. Conversations with
// no message sort last within their group.
func OrderSummaries(summaries []portal.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		switch {
		case a.LastMessage == nil:
			return false
		case b.LastMessage == nil:
			return true
		}
		return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
	})
}
