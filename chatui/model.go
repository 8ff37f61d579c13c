// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/realtime"
)

// Store is the part of *conversation.Store the surface drives.
type Store interface {
	Snapshot() conversation.Snapshot
	Subscribe(fn func(conversation.Change)) (unsubscribe func())
	OpenConversation(ctx context.Context, counterpart ref.UserID) error
	RetryOpen(ctx context.Context) error
	Send(text string) error
	TogglePin(ctx context.Context, counterpart ref.UserID) error
	DeleteConversation(ctx context.Context, counterpart ref.UserID) error
	RefreshConversationList(ctx context.Context) error
}

// Connection reports event channel connectivity. *realtime.Manager
// implements it.
type Connection interface {
	State() realtime.State
	LastError() error
	OnStateChange(fn func(realtime.State)) (unsubscribe func())
}

// Config configures a Model.
type Config struct {
	// Context bounds the store operations the surface starts.
	Context context.Context

	Store      Store
	Connection Connection

	// Theme and Keys default to DefaultTheme and DefaultKeyMap.
	Theme *Theme
	Keys  *KeyMap

	// TimestampFormat is the time layout on author lines. Defaults
	// to "15:04".
	TimestampFormat string

	// RenderMarkdown renders message bodies as markdown.
	RenderMarkdown bool

	// Location is used for calendar-day grouping. Defaults to
	// time.Local.
	Location *time.Location

	Clock  clock.Clock
	Logger *slog.Logger
}

// FocusRegion is the part of the screen receiving key input.
type FocusRegion int

const (
	FocusList FocusRegion = iota
	FocusComposer
	FocusFilter
)

// operationResultMsg reports a store operation started from a key.
type operationResultMsg struct {
	operation string
	err       error
}

const listWidthMax = 36

// Model is the bubbletea model of the chat surface.
type Model struct {
	ctx        context.Context
	store      Store
	connection Connection
	bridge     *updateBridge
	keys       KeyMap
	theme      Theme
	clock      clock.Clock
	logger     *slog.Logger
	transcript transcriptRenderer

	snapshot conversation.Snapshot
	state    realtime.State
	entries  []listEntry
	cursor   int
	scroll   int
	focus    FocusRegion
	slab     *util.Slab

	filter   textinput.Model
	composer textinput.Model
	viewport viewport.Model

	renderedRoom  ref.RoomID
	renderedCount int

	// pendingDelete is the counterpart awaiting a second delete key.
	pendingDelete ref.UserID

	notice         string
	noticeLevel    slog.Level
	noticeSequence int

	width  int
	height int
	ready  bool
}

// NewModel creates the model and subscribes it to store and
// connection notifications. Call Close when the program exits.
func NewModel(config Config) (Model, error) {
	if config.Store == nil {
		return Model{}, fmt.Errorf("chatui: Store is required")
	}
	if config.Connection == nil {
		return Model{}, fmt.Errorf("chatui: Connection is required")
	}
	ctx := config.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}
	timestampFormat := config.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = "15:04"
	}
	location := config.Location
	if location == nil {
		location = time.Local
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter conversations"

	composer := textinput.New()
	composer.Prompt = "> "
	composer.CharLimit = 4000

	renderer := transcriptRenderer{
		theme:           theme,
		timestampFormat: timestampFormat,
		location:        location,
	}
	if config.RenderMarkdown {
		renderer.markdown = newMarkdownStyler(os.Stderr, theme)
	}

	model := Model{
		ctx:        ctx,
		store:      config.Store,
		connection: config.Connection,
		bridge:     newUpdateBridge(config.Store, config.Connection),
		keys:       keys,
		theme:      theme,
		clock:      clk,
		logger:     logger.With("component", "chatui"),
		transcript: renderer,
		filter:     filter,
		composer:   composer,
		slab:       util.MakeSlab(100*1024, 2048),
	}
	model.refresh()
	return model, nil
}

// Close detaches the model from the store and the connection.
func (model Model) Close() {
	model.bridge.close()
}

// Focus returns the region receiving key input.
func (model Model) Focus() FocusRegion { return model.focus }

// Init implements tea.Model. It starts listening for notifications and
// loads the conversation list.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		model.bridge.next(),
		model.operation("refresh", model.store.RefreshConversationList),
	)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		model.syncTranscript(true)

	case storeUpdateMsg:
		model.refresh()
		for _, change := range message.changes {
			if change.Err != nil {
				model.setNotice(describeError(change.Err), slog.LevelError)
			}
		}
		return model, tea.Batch(model.bridge.next(), model.fadeNotice())

	case operationResultMsg:
		if message.err != nil && !errors.Is(message.err, context.Canceled) {
			model.setNotice(message.operation+": "+describeError(message.err), slog.LevelError)
			return model, model.fadeNotice()
		}

	case logRecordMsg:
		model.setNotice(message.Summary, message.Level)
		return model, model.fadeNotice()

	case logRecordFadeMsg:
		if message.sequence == model.noticeSequence {
			model.notice = ""
		}

	case tea.KeyMsg:
		return model.handleKey(message)
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.Quit) {
		return model, tea.Quit
	}
	if model.focus == FocusFilter {
		return model.handleFilterKeys(message)
	}

	switch {
	case key.Matches(message, model.keys.FocusToggle):
		if model.focus == FocusList && model.snapshot.Active != "" {
			model.focus = FocusComposer
			return model, model.composer.Focus()
		}
		model.focus = FocusList
		model.composer.Blur()
		return model, nil

	case key.Matches(message, model.keys.PageUp):
		model.viewport.HalfViewUp()
		return model, nil

	case key.Matches(message, model.keys.PageDown):
		model.viewport.HalfViewDown()
		return model, nil
	}

	if model.focus == FocusComposer {
		return model.handleComposerKeys(message)
	}
	return model.handleListKeys(message)
}

func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := model.selected()
	if !key.Matches(message, model.keys.Delete) {
		model.pendingDelete = ""
	}

	switch {
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
		model.ensureCursorVisible()

	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.entries)-1 {
			model.cursor++
		}
		model.ensureCursorVisible()

	case key.Matches(message, model.keys.Open):
		if !hasSelection {
			return model, nil
		}
		counterpart := selected.User.ID
		model.focus = FocusComposer
		return model, tea.Batch(
			model.composer.Focus(),
			model.operation("open", func(ctx context.Context) error {
				return model.store.OpenConversation(ctx, counterpart)
			}),
		)

	case key.Matches(message, model.keys.Pin):
		if !hasSelection {
			return model, nil
		}
		counterpart := selected.User.ID
		return model, model.operation("pin", func(ctx context.Context) error {
			return model.store.TogglePin(ctx, counterpart)
		})

	case key.Matches(message, model.keys.Delete):
		if !hasSelection {
			return model, nil
		}
		counterpart := selected.User.ID
		if model.pendingDelete != counterpart {
			model.pendingDelete = counterpart
			model.setNotice("press d again to delete the conversation with "+selected.User.DisplayName(), slog.LevelWarn)
			return model, model.fadeNotice()
		}
		model.pendingDelete = ""
		return model, model.operation("delete", func(ctx context.Context) error {
			return model.store.DeleteConversation(ctx, counterpart)
		})

	case key.Matches(message, model.keys.Retry):
		if view, ok := model.snapshot.ActiveConversation(); ok && view.State == conversation.StateFailed {
			return model, model.operation("retry", model.store.RetryOpen)
		}
		return model, model.operation("refresh", model.store.RefreshConversationList)

	case key.Matches(message, model.keys.FilterActivate):
		model.focus = FocusFilter
		model.cursor = 0
		model.scroll = 0
		return model, model.filter.Focus()

	case key.Matches(message, model.keys.FilterClear):
		model.filter.Reset()
		model.rebuildEntries()
	}
	return model, nil
}

func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.FilterClear):
		model.filter.Reset()
		model.filter.Blur()
		model.focus = FocusList
		model.rebuildEntries()
		return model, nil

	case key.Matches(message, model.keys.Open):
		model.filter.Blur()
		model.focus = FocusList
		return model, nil
	}

	var command tea.Cmd
	model.filter, command = model.filter.Update(message)
	model.cursor = 0
	model.scroll = 0
	model.rebuildEntries()
	return model, command
}

func (model Model) handleComposerKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.FilterClear) {
		model.focus = FocusList
		model.composer.Blur()
		return model, nil
	}
	if model.state != realtime.Connected {
		// The composer is read-only while offline; the reason is shown
		// in its placeholder.
		return model, nil
	}
	if key.Matches(message, model.keys.Open) {
		err := model.store.Send(model.composer.Value())
		switch {
		case err == nil:
			model.composer.Reset()
		case errors.Is(err, conversation.ErrEmptyMessage):
		default:
			model.setNotice("send: "+describeError(err), slog.LevelError)
			return model, model.fadeNotice()
		}
		return model, nil
	}

	var command tea.Cmd
	model.composer, command = model.composer.Update(message)
	return model, command
}

// operation runs fn as a command and reports its error.
func (model Model) operation(name string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := model.ctx
	return func() tea.Msg {
		return operationResultMsg{operation: name, err: fn(ctx)}
	}
}

func (model *Model) setNotice(text string, level slog.Level) {
	model.notice = text
	model.noticeLevel = level
	model.noticeSequence++
}

func (model Model) fadeNotice() tea.Cmd {
	if model.notice == "" {
		return nil
	}
	sequence := model.noticeSequence
	return tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
		return logRecordFadeMsg{sequence: sequence}
	})
}

// refresh re-reads the store and the connection.
func (model *Model) refresh() {
	model.snapshot = model.store.Snapshot()
	model.state = model.connection.State()
	model.transcript.me = model.snapshot.Me
	model.transcript.names = make(map[ref.UserID]string, len(model.snapshot.Summaries))
	for _, summary := range model.snapshot.Summaries {
		model.transcript.names[summary.Counterpart.ID] = summary.Counterpart.DisplayName()
	}
	if model.snapshot.Active == "" && model.focus == FocusComposer {
		model.focus = FocusList
		model.composer.Blur()
	}
	model.rebuildEntries()
	model.syncComposer()
	model.syncTranscript(false)
}

// rebuildEntries recomputes the list, keeping the selected room
// selected when it is still present.
func (model *Model) rebuildEntries() {
	var selectedRoom ref.RoomID
	if entry, ok := model.selected(); ok {
		selectedRoom = entry.Room
	}
	model.entries = buildEntries(model.snapshot, model.filter.Value(), model.slab)
	for index, entry := range model.entries {
		if entry.Room == selectedRoom {
			model.cursor = index
			break
		}
	}
	if model.cursor >= len(model.entries) {
		model.cursor = len(model.entries) - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	model.ensureCursorVisible()
}

func (model Model) selected() (listEntry, bool) {
	if model.cursor < 0 || model.cursor >= len(model.entries) {
		return listEntry{}, false
	}
	return model.entries[model.cursor], true
}

// syncComposer enables the composer only while Connected and explains
// why when it is not.
func (model *Model) syncComposer() {
	switch {
	case model.snapshot.Active == "":
		model.composer.Placeholder = "select a conversation"
	case model.state == realtime.Connected:
		model.composer.Placeholder = "write a message"
	case model.state == realtime.Connecting:
		model.composer.Placeholder = "offline: reconnecting, sending is disabled"
	default:
		reason := "disconnected, sending is disabled"
		if realtime.IsAuthError(model.connection.LastError()) {
			reason = "session rejected, sign in again to send"
		}
		model.composer.Placeholder = reason
	}
}

// syncTranscript re-renders the active conversation into the
// viewport. It follows the tail when the view was already at the
// bottom, when a different conversation was opened, or when force is
// set.
func (model *Model) syncTranscript(force bool) {
	view, ok := model.snapshot.ActiveConversation()
	if !ok {
		model.viewport.SetContent("")
		model.renderedRoom = ""
		model.renderedCount = 0
		return
	}
	width := model.viewport.Width
	if width <= 0 {
		width = 40
	}
	var content string
	switch {
	case view.State == conversation.StateFailed && len(view.Messages) == 0:
		content = lipgloss.NewStyle().Foreground(model.theme.ErrorText).
			Render("Could not load this conversation: " + describeError(view.Err) + "\nPress r in the list to retry.")
	case view.State == conversation.StateLoading && len(view.Messages) == 0:
		content = lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("Loading…")
	case len(view.Messages) == 0:
		content = lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No messages yet. Say hello.")
	default:
		content = model.transcript.render(view.Messages, width, model.clock.Now())
	}

	follow := force || model.viewport.AtBottom() || view.Room != model.renderedRoom || len(view.Messages) > model.renderedCount
	model.viewport.SetContent(content)
	if follow {
		model.viewport.GotoBottom()
	}
	model.renderedRoom = view.Room
	model.renderedCount = len(view.Messages)
}

func (model *Model) layout() {
	contentHeight := model.contentHeight()
	model.viewport.Width = model.width - model.listWidth() - 1
	// Conversation title, composer rule, composer.
	model.viewport.Height = contentHeight - 3
	if model.viewport.Height < 1 {
		model.viewport.Height = 1
	}
	model.composer.Width = model.viewport.Width - 3
	model.filter.Width = model.listWidth() - 3
	model.ensureCursorVisible()
}

func (model Model) listWidth() int {
	width := model.width / 3
	if width > listWidthMax {
		width = listWidthMax
	}
	if width < 16 {
		width = 16
	}
	return width
}

// contentHeight is the height between the title bar and the
// separator above the status bar.
func (model Model) contentHeight() int {
	height := model.height - 3
	if height < 4 {
		height = 4
	}
	return height
}

// visibleRows is the number of list entries that fit; each takes two
// lines and the filter line takes one when shown.
func (model Model) visibleRows() int {
	height := model.contentHeight()
	if model.filterShown() {
		height--
	}
	rows := height / 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (model Model) filterShown() bool {
	return model.focus == FocusFilter || model.filter.Value() != ""
}

func (model *Model) ensureCursorVisible() {
	rows := model.visibleRows()
	if model.cursor < model.scroll {
		model.scroll = model.cursor
	}
	if model.cursor >= model.scroll+rows {
		model.scroll = model.cursor - rows + 1
	}
	if model.scroll < 0 {
		model.scroll = 0
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	sections := []string{
		model.renderTitleBar(),
		lipgloss.JoinHorizontal(lipgloss.Top,
			model.renderListPane(),
			model.renderDivider(),
			model.renderConversationPane(),
		),
		lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render(strings.Repeat("─", model.width)),
		model.renderStatusBar(),
	}
	return strings.Join(sections, "\n")
}

func (model Model) renderTitleBar() string {
	title := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).Render("Alumni chat")
	if total := model.snapshot.TotalUnread(); total > 0 {
		title += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(fmt.Sprintf("  %d unread", total))
	}
	indicator := model.renderConnectivity()
	gap := model.width - ansi.StringWidth(title) - ansi.StringWidth(indicator)
	if gap < 1 {
		gap = 1
	}
	return ansi.Truncate(title+strings.Repeat(" ", gap)+indicator, model.width, "…")
}

func (model Model) renderConnectivity() string {
	switch model.state {
	case realtime.Connected:
		return lipgloss.NewStyle().Foreground(model.theme.Connected).Render("● connected")
	case realtime.Connecting:
		return lipgloss.NewStyle().Foreground(model.theme.Connecting).Render("◌ reconnecting")
	default:
		label := "○ disconnected"
		if realtime.IsAuthError(model.connection.LastError()) {
			label = "○ signed out"
		}
		return lipgloss.NewStyle().Foreground(model.theme.Disconnected).Render(label)
	}
}

func (model Model) renderListPane() string {
	width := model.listWidth()
	height := model.contentHeight()
	var lines []string
	if model.filterShown() {
		lines = append(lines, ansi.Truncate(model.filter.View(), width, "…"))
	}

	if len(model.entries) == 0 {
		empty := "No conversations yet."
		if model.filter.Value() != "" {
			empty = "No matches."
		} else if model.snapshot.ListErr != nil {
			empty = "Could not load conversations. Press r to retry."
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(ansi.Truncate(empty, width, "…")))
	}

	now := model.clock.Now()
	end := model.scroll + model.visibleRows()
	if end > len(model.entries) {
		end = len(model.entries)
	}
	for index := model.scroll; index < end; index++ {
		selected := index == model.cursor && model.focus != FocusComposer
		lines = append(lines, renderListRow(model.entries[index], selected, model.theme, width, now))
	}
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

func (model Model) renderDivider() string {
	height := model.contentHeight()
	lines := make([]string, height)
	for index := range lines {
		lines[index] = "│"
	}
	return lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render(strings.Join(lines, "\n"))
}

func (model Model) renderConversationPane() string {
	width := model.width - model.listWidth() - 1
	height := model.contentHeight()

	header := lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No conversation selected")
	if view, ok := model.snapshot.ActiveConversation(); ok {
		name := model.transcript.names[view.Counterpart]
		if name == "" {
			name = string(view.Counterpart)
		}
		header = lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).Render(name)
		if view.State == conversation.StateLoading {
			header += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  loading…")
		}
	}

	rule := lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render(strings.Repeat("─", width))
	composer := model.composer.View()
	if model.state != realtime.Connected {
		composer = lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("× " + model.composer.Placeholder)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		ansi.Truncate(header, width, "…"),
		model.viewport.View(),
		rule,
		ansi.Truncate(composer, width, "…"),
	)
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(body)
}

func (model Model) renderStatusBar() string {
	if model.notice != "" {
		colour := model.theme.WarningText
		if model.noticeLevel >= slog.LevelError {
			colour = model.theme.ErrorText
		}
		return lipgloss.NewStyle().Foreground(colour).Render(ansi.Truncate(model.notice, model.width, "…"))
	}

	var bindings []key.Binding
	switch model.focus {
	case FocusList:
		bindings = []key.Binding{model.keys.Open, model.keys.FocusToggle, model.keys.FilterActivate,
			model.keys.Pin, model.keys.Delete, model.keys.Retry, model.keys.Quit}
	case FocusComposer:
		bindings = []key.Binding{model.keys.Open, model.keys.FocusToggle, model.keys.PageUp, model.keys.PageDown, model.keys.Quit}
	case FocusFilter:
		bindings = []key.Binding{model.keys.Open, model.keys.FilterClear, model.keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	help := strings.Join(parts, " · ")
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(ansi.Truncate(help, model.width, "…"))
}

// describeError shortens the error chains the store reports.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	var sendErr *conversation.SendError
	if errors.As(err, &sendErr) {
		switch {
		case errors.Is(err, realtime.ErrNotConnected):
			return "not connected, message not sent"
		case errors.Is(err, realtime.ErrStopped):
			return "signed out, message not sent"
		}
		var rejected *realtime.RejectedError
		if errors.As(err, &rejected) {
			return "server rejected the message: " + rejected.Reason
		}
		var transport *realtime.TransportError
		if errors.As(err, &transport) {
			return "connection dropped before the message was confirmed"
		}
	}
	return err.Error()
}
