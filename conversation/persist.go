// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/portal"
)

// persister writes transcripts to the cache off the push path. Only
// the newest write queued for a room is applied.
type persister struct {
	cache  Cache
	logger *slog.Logger

	mu     sync.Mutex
	queued map[ref.RoomID]cacheWrite
	order  []ref.RoomID

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newPersister(cache Cache, logger *slog.Logger) *persister {
	p := &persister{
		cache:  cache,
		logger: logger,
		queued: make(map[ref.RoomID]cacheWrite),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// cacheWrite is a queued transcript, or a removal when forget is set.
type cacheWrite struct {
	messages []portal.Message
	forget   bool
}

func (p *persister) enqueue(room ref.RoomID, write cacheWrite) {
	p.mu.Lock()
	if _, queued := p.queued[room]; !queued {
		p.order = append(p.order, room)
	}
	p.queued[room] = write
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *persister) flush() {
	p.mu.Lock()
	queued, order := p.queued, p.order
	p.queued = make(map[ref.RoomID]cacheWrite)
	p.order = nil
	p.mu.Unlock()

	for _, room := range order {
		write := queued[room]
		var err error
		if write.forget {
			err = p.cache.Forget(context.Background(), room)
		} else {
			err = p.cache.Save(context.Background(), room, write.messages)
		}
		if err != nil {
			p.logger.Warn("transcript cache write failed", "room_id", room, "forget", write.forget, "error", err)
		}
	}
}

// close writes everything still queued and stops the goroutine.
func (p *persister) close() {
	close(p.stop)
	<-p.done
}
