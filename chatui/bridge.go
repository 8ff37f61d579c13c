// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/realtime"
)

// storeUpdateMsg tells the model to re-read the store. Changes holds
// every notification since the previous update so that errors carried
// by them are not lost when notifications coalesce.
type storeUpdateMsg struct {
	changes []conversation.Change
}

// updateBridge turns store and connection callbacks, which run on
// their owners' goroutines and must not block, into bubbletea
// messages.
type updateBridge struct {
	mu      sync.Mutex
	changes []conversation.Change

	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	unbind []func()
}

func newUpdateBridge(store Store, connection Connection) *updateBridge {
	bridge := &updateBridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	bridge.unbind = append(bridge.unbind, store.Subscribe(bridge.onChange))
	if connection != nil {
		bridge.unbind = append(bridge.unbind, connection.OnStateChange(func(realtime.State) { bridge.poke() }))
	}
	return bridge
}

func (bridge *updateBridge) onChange(change conversation.Change) {
	bridge.mu.Lock()
	bridge.changes = append(bridge.changes, change)
	bridge.mu.Unlock()
	bridge.poke()
}

func (bridge *updateBridge) poke() {
	select {
	case bridge.wake <- struct{}{}:
	default:
	}
}

// next returns a command that waits for the next notification.
func (bridge *updateBridge) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-bridge.wake:
		case <-bridge.done:
			return nil
		}
		bridge.mu.Lock()
		changes := bridge.changes
		bridge.changes = nil
		bridge.mu.Unlock()
		return storeUpdateMsg{changes: changes}
	}
}

func (bridge *updateBridge) close() {
	bridge.once.Do(func() {
		for _, unbind := range bridge.unbind {
			unbind()
		}
		close(bridge.done)
	})
}
