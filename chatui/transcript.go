// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/ref"
)

// dayGroup is the messages of one calendar day, split into runs of
// consecutive messages from the same sender.
type dayGroup struct {
	Day  time.Time
	Runs []senderRun
}

type senderRun struct {
	Sender   ref.UserID
	Messages []conversation.Message
}

// groupTranscript splits an ordered transcript into calendar days in
// location, and each day into same-sender runs. A run never crosses a
// day boundary.
func groupTranscript(messages []conversation.Message, location *time.Location) []dayGroup {
	var groups []dayGroup
	for _, message := range messages {
		local := message.CreatedAt.In(location)
		year, month, day := local.Date()
		midnight := time.Date(year, month, day, 0, 0, 0, 0, location)

		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(midnight) {
			groups = append(groups, dayGroup{Day: midnight})
		}
		group := &groups[len(groups)-1]
		if len(group.Runs) == 0 || group.Runs[len(group.Runs)-1].Sender != message.SenderID {
			group.Runs = append(group.Runs, senderRun{Sender: message.SenderID})
		}
		run := &group.Runs[len(group.Runs)-1]
		run.Messages = append(run.Messages, message)
	}
	return groups
}

// transcriptRenderer turns a transcript into the viewport body.
type transcriptRenderer struct {
	me              ref.UserID
	theme           Theme
	names           map[ref.UserID]string
	timestampFormat string
	location        *time.Location
	markdown        *markdownStyler // nil renders bodies as plain text
}

const pendingMarker = "◷"

func (renderer transcriptRenderer) render(messages []conversation.Message, width int, now time.Time) string {
	if width < 12 {
		width = 12
	}
	var lines []string
	for index, group := range groupTranscript(messages, renderer.location) {
		if index > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderer.dayHeader(group.Day, now, width))
		for _, run := range group.Runs {
			lines = append(lines, "")
			lines = append(lines, renderer.authorLine(run))
			for _, message := range run.Messages {
				lines = append(lines, renderer.body(message, width-2))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (renderer transcriptRenderer) dayHeader(day, now time.Time, width int) string {
	label := day.Format("Monday, 2 January 2006")
	switch {
	case sameDay(day, now.In(renderer.location)):
		label = "Today"
	case sameDay(day, now.In(renderer.location).AddDate(0, 0, -1)):
		label = "Yesterday"
	}
	label = " " + label + " "
	style := lipgloss.NewStyle().Foreground(renderer.theme.FaintText)
	side := (width - ansi.StringWidth(label)) / 2
	if side < 1 {
		return style.Render(label)
	}
	rule := strings.Repeat("─", side)
	return style.Render(rule + label + rule)
}

func (renderer transcriptRenderer) authorLine(run senderRun) string {
	colour := renderer.theme.OtherAuthor
	name := renderer.names[run.Sender]
	if name == "" {
		name = string(run.Sender)
	}
	if run.Sender == renderer.me {
		colour = renderer.theme.OwnAuthor
		name = "You"
	}
	author := lipgloss.NewStyle().Foreground(colour).Bold(true).Render(name)
	stamp := lipgloss.NewStyle().Foreground(renderer.theme.FaintText).
		Render(run.Messages[0].CreatedAt.In(renderer.location).Format(renderer.timestampFormat))
	return author + "  " + stamp
}

func (renderer transcriptRenderer) body(message conversation.Message, width int) string {
	foreground := renderer.theme.NormalText
	if message.Status == conversation.Pending {
		foreground = renderer.theme.PendingText
	}
	var rendered string
	if renderer.markdown != nil {
		rendered = renderer.markdown.render(message.Content, width, foreground)
	} else {
		rendered = lipgloss.NewStyle().Foreground(foreground).Render(ansi.Wrap(message.Content, width, " ,.;-+|"))
	}
	if message.Status == conversation.Pending {
		rendered += " " + lipgloss.NewStyle().Foreground(renderer.theme.PendingText).Render(pendingMarker)
	}

	lines := strings.Split(rendered, "\n")
	for index := range lines {
		lines[index] = "  " + lines[index]
	}
	return strings.Join(lines, "\n")
}
