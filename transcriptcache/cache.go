// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package transcriptcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/clock"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/lib/sqlitepool"
	"github.com/alumnet-portal/chatsync/portal"
)

var migrations = []string{
	`CREATE TABLE transcripts (
		room_id  TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL,
		encoding INTEGER NOT NULL,
		raw_size INTEGER NOT NULL,
		body     BLOB NOT NULL
	) WITHOUT ROWID;`,
}

// Config configures a Cache.
type Config struct {
	// Path is the database file. Its directory is created with mode
	// 0700 if missing.
	Path string

	Compression Compression

	Clock  clock.Clock
	Logger *slog.Logger
}

// Cache is a per-account transcript store. It is safe for concurrent
// use.
type Cache struct {
	pool        *sqlitepool.Pool
	compression Compression
	clock       clock.Clock
	logger      *slog.Logger
}

var _ conversation.Cache = (*Cache)(nil)

// Open opens or creates the cache database.
func Open(ctx context.Context, config Config) (*Cache, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("transcriptcache: Path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return nil, fmt.Errorf("transcriptcache: creating cache directory: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "transcriptcache")
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       config.Path,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("transcriptcache: %w", err)
	}
	return &Cache{
		pool:        pool,
		compression: config.Compression,
		clock:       clk,
		logger:      logger,
	}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// Load returns the transcript last saved for room. The second result
// is false when nothing was saved.
func (c *Cache) Load(ctx context.Context, room ref.RoomID) ([]portal.Message, bool, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("transcriptcache: %w", err)
	}
	defer c.pool.Put(conn)

	var (
		found    bool
		encoding Compression
		rawSize  int
		body     []byte
	)
	err = sqlitex.Execute(conn,
		"SELECT encoding, raw_size, body FROM transcripts WHERE room_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(room)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				encoding = Compression(stmt.ColumnInt(0))
				rawSize = stmt.ColumnInt(1)
				body = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, body)
				return nil
			},
		})
	if err != nil {
		return nil, false, fmt.Errorf("transcriptcache: reading %s: %w", room, err)
	}
	if !found {
		return nil, false, nil
	}

	raw, err := decompress(body, encoding, rawSize)
	if err != nil {
		return nil, false, fmt.Errorf("transcriptcache: room %s: %w", room, err)
	}
	var messages []portal.Message
	if err := codec.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("transcriptcache: decoding room %s: %w", room, err)
	}
	return messages, true, nil
}

// Save replaces the transcript stored for room. Messages carrying a
// temporary id are skipped.
func (c *Cache) Save(ctx context.Context, room ref.RoomID, messages []portal.Message) error {
	confirmed := make([]portal.Message, 0, len(messages))
	for _, message := range messages {
		if strings.HasPrefix(message.ID, conversation.TemporaryPrefix) {
			continue
		}
		confirmed = append(confirmed, message)
	}

	raw, err := codec.Marshal(confirmed)
	if err != nil {
		return fmt.Errorf("transcriptcache: encoding room %s: %w", room, err)
	}
	body, encoding, err := compress(raw, c.compression)
	if err != nil {
		return fmt.Errorf("transcriptcache: room %s: %w", room, err)
	}

	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("transcriptcache: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO transcripts (room_id, saved_at, encoding, raw_size, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (room_id) DO UPDATE SET
		   saved_at = excluded.saved_at,
		   encoding = excluded.encoding,
		   raw_size = excluded.raw_size,
		   body = excluded.body`,
		&sqlitex.ExecOptions{
			Args: []any{string(room), c.clock.Now().UnixMilli(), int(encoding), len(raw), body},
		})
	if err != nil {
		return fmt.Errorf("transcriptcache: writing %s: %w", room, err)
	}
	c.logger.Debug("transcript saved",
		"room_id", room,
		"messages", len(confirmed),
		"encoding", encoding.String(),
		"stored_bytes", len(body),
	)
	return nil
}

// Forget removes the transcript stored for room.
func (c *Cache) Forget(ctx context.Context, room ref.RoomID) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("transcriptcache: %w", err)
	}
	defer c.pool.Put(conn)
	if err := sqlitex.Execute(conn, "DELETE FROM transcripts WHERE room_id = ?", &sqlitex.ExecOptions{
		Args: []any{string(room)},
	}); err != nil {
		return fmt.Errorf("transcriptcache: deleting %s: %w", room, err)
	}
	return nil
}
