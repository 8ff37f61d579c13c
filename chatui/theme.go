// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme is the colour palette of the chat surface. All colours are
// ANSI 256-colour codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Author lines: the signed-in user and everyone else.
	OwnAuthor   lipgloss.Color
	OtherAuthor lipgloss.Color

	// Pending messages are drawn in this colour until confirmed.
	PendingText lipgloss.Color

	UnreadBadgeForeground lipgloss.Color
	UnreadBadgeBackground lipgloss.Color
	PinMarker             lipgloss.Color

	// Connectivity indicator.
	Connected    lipgloss.Color
	Connecting   lipgloss.Color
	Disconnected lipgloss.Color

	ErrorText   lipgloss.Color
	WarningText lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	LinkForeground   lipgloss.Color

	// Fuzzy filter match highlighting.
	MatchHighlight lipgloss.Color
}

// DefaultTheme is tuned for dark 256-colour terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	OwnAuthor:   lipgloss.Color("75"),  // blue
	OtherAuthor: lipgloss.Color("114"), // green

	PendingText: lipgloss.Color("242"),

	UnreadBadgeForeground: lipgloss.Color("232"),
	UnreadBadgeBackground: lipgloss.Color("220"), // amber
	PinMarker:             lipgloss.Color("208"),

	Connected:    lipgloss.Color("114"),
	Connecting:   lipgloss.Color("220"),
	Disconnected: lipgloss.Color("196"),

	ErrorText:   lipgloss.Color("196"),
	WarningText: lipgloss.Color("220"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	LinkForeground:   lipgloss.Color("75"),

	MatchHighlight: lipgloss.Color("220"),
}
