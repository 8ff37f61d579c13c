// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// listEntry is one row of the conversation list.
type listEntry struct {
	User    portal.User
	Room    ref.RoomID
	Preview string
	LastAt  time.Time
	Pinned  bool
	Unread  int

	// Positions are the rune offsets of the display name that matched
	// the filter.
	Positions []int
	score     int
}

// buildEntries turns the snapshot's summaries into list rows: pinned
// first, then by last-message recency. A non-empty filter keeps only
// fuzzy matches, best match first.
func buildEntries(snapshot conversation.Snapshot, filter string, slab *util.Slab) []listEntry {
	summaries := append([]portal.ConversationSummary(nil), snapshot.Summaries...)
	conversation.OrderSummaries(summaries)

	pattern := []rune(strings.TrimSpace(filter))
	entries := make([]listEntry, 0, len(summaries))
	for _, summary := range summaries {
		room := ref.RoomFor(snapshot.Me, summary.Counterpart.ID)
		entry := listEntry{
			User:   summary.Counterpart,
			Room:   room,
			Pinned: summary.Pinned,
			Unread: snapshot.Unread[room],
		}
		if last := summary.LastMessage; last != nil {
			entry.Preview = previewText(last.Content)
			if last.SenderID == snapshot.Me {
				entry.Preview = "you: " + entry.Preview
			}
			entry.LastAt = last.CreatedAt
		}
		if len(pattern) > 0 {
			match := fuzzyMatch(entry.User.DisplayName(), pattern, slab)
			if match.Score == 0 {
				continue
			}
			entry.score = match.Score
			entry.Positions = match.Positions
		}
		entries = append(entries, entry)
	}
	if len(pattern) > 0 {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].score > entries[j].score })
	}
	return entries
}

// previewText collapses a message body to one line.
func previewText(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// renderListRow renders one entry as two lines fitted to width.
func renderListRow(entry listEntry, selected bool, theme Theme, width int, now time.Time) string {
	base := lipgloss.NewStyle().Foreground(theme.NormalText)
	if selected {
		base = base.Background(theme.SelectedBackground).Foreground(theme.SelectedForeground)
	}
	faint := base.Foreground(theme.FaintText)

	marker := "  "
	if entry.Pinned {
		marker = base.Foreground(theme.PinMarker).Render("★ ")
	}
	badge := ""
	if entry.Unread > 0 {
		badge = " " + lipgloss.NewStyle().
			Foreground(theme.UnreadBadgeForeground).
			Background(theme.UnreadBadgeBackground).
			Bold(true).
			Render(fmt.Sprintf(" %d ", entry.Unread))
	}
	stamp := ""
	if !entry.LastAt.IsZero() {
		stamp = " " + faint.Render(relativeStamp(entry.LastAt, now))
	}

	nameWidth := width - 2 - ansi.StringWidth(badge) - ansi.StringWidth(stamp)
	if nameWidth < 1 {
		nameWidth = 1
	}
	name := highlightPositions(entry.User.DisplayName(), entry.Positions, base, base.Foreground(theme.MatchHighlight).Bold(true))
	if entry.Unread > 0 {
		name = lipgloss.NewStyle().Bold(true).Render(name)
	}
	name = ansi.Truncate(name, nameWidth, "…")
	first := marker + name
	padding := width - ansi.StringWidth(first) - ansi.StringWidth(badge) - ansi.StringWidth(stamp)
	if padding < 0 {
		padding = 0
	}
	first += base.Render(strings.Repeat(" ", padding)) + stamp + badge

	preview := ansi.Truncate(entry.Preview, width-2, "…")
	second := base.Render("  ") + faint.Render(preview)
	if gap := width - ansi.StringWidth(second); gap > 0 {
		second += base.Render(strings.Repeat(" ", gap))
	}
	return first + "\n" + second
}

// highlightPositions styles the runes at positions with match and the
// rest with normal.
func highlightPositions(text string, positions []int, normal, match lipgloss.Style) string {
	if len(positions) == 0 {
		return normal.Render(text)
	}
	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}
	var builder strings.Builder
	for index, character := range []rune(text) {
		if matched[index] {
			builder.WriteString(match.Render(string(character)))
		} else {
			builder.WriteString(normal.Render(string(character)))
		}
	}
	return builder.String()
}

// relativeStamp formats t for the list: a clock time today, a weekday
// within the last week, a date otherwise.
func relativeStamp(t, now time.Time) string {
	local := t.In(now.Location())
	switch {
	case sameDay(local, now):
		return local.Format("15:04")
	case now.Sub(local) < 7*24*time.Hour:
		return local.Format("Mon")
	case local.Year() == now.Year():
		return local.Format("2 Jan")
	default:
		return local.Format("2 Jan 2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
