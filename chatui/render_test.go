// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/ref"
)

func TestGroupTranscript(t *testing.T) {
	messages := []conversation.Message{
		message("m1", me, "morning", -24*time.Hour),
		message("m2", me, "anyone?", -24*time.Hour+time.Minute),
		message("m3", bob, "here", -24*time.Hour+2*time.Minute),
		message("m4", bob, "next day", 0),
	}
	groups := groupTranscript(messages, time.UTC)
	if len(groups) != 2 {
		t.Fatalf("got %d day groups, want 2", len(groups))
	}
	first := groups[0]
	if len(first.Runs) != 2 || first.Runs[0].Sender != me || len(first.Runs[0].Messages) != 2 || first.Runs[1].Sender != bob {
		t.Errorf("first day runs = %+v", first.Runs)
	}
	// Bob's run does not continue across midnight.
	if len(groups[1].Runs) != 1 || groups[1].Runs[0].Messages[0].ID != "m4" {
		t.Errorf("second day runs = %+v", groups[1].Runs)
	}
	if !groups[1].Day.Equal(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("second day = %v", groups[1].Day)
	}
}

func TestTranscriptDayHeaders(t *testing.T) {
	renderer := transcriptRenderer{
		me:              me,
		theme:           DefaultTheme,
		names:           map[ref.UserID]string{bob: "Bob Smith"},
		timestampFormat: "15:04",
		location:        time.UTC,
	}
	messages := []conversation.Message{
		message("m0", bob, "last week", -6*24*time.Hour),
		message("m1", bob, "yesterday", -24*time.Hour),
		message("m2", me, "today", 0),
	}
	out := ansi.Strip(renderer.render(messages, 60, baseTime.Add(time.Hour)))
	for _, want := range []string{"Thursday, 14 May 2026", "Yesterday", "Today", "Bob Smith  14:30", "You  14:30"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestRelativeStamp(t *testing.T) {
	now := baseTime
	cases := []struct {
		at   time.Time
		want string
	}{
		{baseTime.Add(-2 * time.Hour), "12:30"},
		{baseTime.Add(-3 * 24 * time.Hour), "Sun"},
		{baseTime.Add(-30 * 24 * time.Hour), "20 Apr"},
		{baseTime.AddDate(-1, 0, 0), "20 May 2025"},
	}
	for _, tc := range cases {
		if got := relativeStamp(tc.at, now); got != tc.want {
			t.Errorf("relativeStamp(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestFuzzyMatch(t *testing.T) {
	slab := util.MakeSlab(100*1024, 2048)

	result := fuzzyMatch("Carol Danvers", []rune("cdv"), slab)
	if result.Score <= 0 {
		t.Fatalf("no match for an in-order subsequence")
	}
	if len(result.Positions) != 3 || result.Positions[0] != 0 || result.Positions[1] != 6 || result.Positions[2] != 9 {
		t.Errorf("positions = %v, want [0 6 9]", result.Positions)
	}
	if result := fuzzyMatch("Carol Danvers", []rune("CAROL"), slab); result.Score <= 0 {
		t.Error("matching is case sensitive")
	}
	if result := fuzzyMatch("Carol Danvers", []rune("xyz"), slab); result.Score > 0 {
		t.Errorf("unexpected match, score %d", result.Score)
	}
}

func TestBuildEntriesFilterAndPreview(t *testing.T) {
	store := newFakeStore()
	own := summary(carol, "Carol Danvers", "done\nthanks", time.Minute, false)
	own.LastMessage.SenderID = me
	own.LastMessage.RecipientID = carol
	store.setSummaries(summary(bob, "Bob Smith", "hi", 0, false), own)
	slab := util.MakeSlab(100*1024, 2048)

	entries := buildEntries(store.Snapshot(), "", slab)
	if len(entries) != 2 || entries[0].User.ID != carol {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Preview != "you: done thanks" {
		t.Errorf("preview = %q", entries[0].Preview)
	}

	entries = buildEntries(store.Snapshot(), "smith", slab)
	if len(entries) != 1 || entries[0].User.ID != bob {
		t.Errorf("filtered entries = %+v", entries)
	}
}

func TestMarkdownRendering(t *testing.T) {
	styler := newMarkdownStyler(io.Discard, DefaultTheme)

	out := ansi.Strip(styler.render("**bold** and `code`", 40, DefaultTheme.NormalText))
	if out != "bold and code" {
		t.Errorf("inline render = %q", out)
	}

	out = ansi.Strip(styler.render("- one\n- two\n\n1. first\n2. second", 40, DefaultTheme.NormalText))
	for _, want := range []string{"• one", "• two", "1. first", "2. second"} {
		if !strings.Contains(out, want) {
			t.Errorf("list render missing %q:\n%s", want, out)
		}
	}

	out = ansi.Strip(styler.render("> quoted", 40, DefaultTheme.NormalText))
	if !strings.HasPrefix(out, "│ quoted") {
		t.Errorf("blockquote render = %q", out)
	}

	out = ansi.Strip(styler.render("see [docs](https://example.org)", 60, DefaultTheme.NormalText))
	if out != "see docs (https://example.org)" {
		t.Errorf("link render = %q", out)
	}

	out = ansi.Strip(styler.render("```go\nfunc main() {}\n```", 40, DefaultTheme.NormalText))
	if !strings.Contains(out, "func main() {}") {
		t.Errorf("code block render = %q", out)
	}
}

func TestMarkdownWrapsToWidth(t *testing.T) {
	styler := newMarkdownStyler(io.Discard, DefaultTheme)
	out := ansi.Strip(styler.render(strings.Repeat("word ", 20), 20, DefaultTheme.NormalText))
	for _, line := range strings.Split(out, "\n") {
		if ansi.StringWidth(line) > 20 {
			t.Errorf("line wider than 20 columns: %q", line)
		}
	}
}

func TestLogHandlerWithoutProgram(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error not enabled at warn level")
	}
	derived := handler.WithAttrs([]slog.Attr{slog.String("component", "realtime")}).(*LogHandler)
	if derived.program != handler.program {
		t.Error("derived handler does not share the program pointer")
	}
	// No program yet: the record is dropped without blocking.
	record := slog.NewRecord(time.Now(), slog.LevelError, "dropped", 0)
	if err := derived.Handle(context.Background(), record); err != nil {
		t.Errorf("Handle: %v", err)
	}
}
