// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg carries a log record into the status bar.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears a log record from the status bar. The
// sequence number drops fades scheduled for records that have since
// been replaced.
type logRecordFadeMsg struct {
	sequence int
}

const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that shows records in the chat surface's
// status bar while the program runs, since the terminal belongs to the
// TUI and text written to stderr would corrupt it.
//
// Records arriving before SetProgram are dropped. Handlers derived
// with WithAttrs or WithGroup share the program pointer.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	groups  []string
}

// NewLogHandler creates a handler that forwards records at or above
// level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram starts delivery to program. Safe to call from any
// goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	var parts []string
	prefix := strings.Join(handler.groups, ".")
	if prefix != "" {
		prefix += "."
	}
	for _, attr := range handler.attrs {
		parts = append(parts, attr.Key+"="+attr.Value.String())
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, prefix+attr.Key+"="+attr.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	// Program.Send blocks until the event loop reads the message, and
	// records are also logged from inside Update.
	go program.Send(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(append([]slog.Attr(nil), handler.attrs...), attrs...),
		groups:  append([]string(nil), handler.groups...),
	}
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append([]slog.Attr(nil), handler.attrs...),
		groups:  append(append([]string(nil), handler.groups...), name),
	}
}
