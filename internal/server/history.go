// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrMessageNotFound is returned for operations on unknown message ids.
var ErrMessageNotFound = errors.New("server: message not found")

// =============================================================================
// HISTORY STORE
// =============================================================================

// StoredMessage is one persisted chat message.
type StoredMessage struct {
	ID      string
	UserID  string
	Role    string
	Content string
	Created time.Time
}

// historySchema holds per-user chat history so the connected event can
// replay it after a reconnect.
const historySchema = `
CREATE TABLE IF NOT EXISTS messages (
    seq     INTEGER PRIMARY KEY AUTOINCREMENT,
    id      TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    role    TEXT NOT NULL,
    content TEXT NOT NULL,
    created INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);
`

// HistoryStore persists chat messages in SQLite.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database.
func OpenHistory(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// Close releases the database.
func (h *HistoryStore) Close() error { return h.db.Close() }

// Append stores one message.
func (h *HistoryStore) Append(msg StoredMessage) error {
	_, err := h.db.Exec(
		`INSERT INTO messages (id, user_id, role, content, created) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.Role, msg.Content, msg.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// ReplaceContent updates a stored message's content in place.
func (h *HistoryStore) ReplaceContent(id, content string) error {
	res, err := h.db.Exec(`UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// List returns a user's messages in insertion order.
func (h *HistoryStore) List(userID string) ([]StoredMessage, error) {
	rows, err := h.db.Query(
		`SELECT id, user_id, role, content, created FROM messages WHERE user_id = ? ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var created int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Created = time.Unix(created, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// NextAssistantAfter returns the first assistant message stored after
// the given one, or ErrMessageNotFound. Used to locate the response a
// message edit regenerates.
func (h *HistoryStore) NextAssistantAfter(id string) (*StoredMessage, error) {
	var m StoredMessage
	var created int64
	err := h.db.QueryRow(`
		SELECT id, user_id, role, content, created FROM messages
		WHERE role = 'assistant'
		  AND user_id = (SELECT user_id FROM messages WHERE id = ?)
		  AND seq > (SELECT seq FROM messages WHERE id = ?)
		ORDER BY seq LIMIT 1`,
		id, id,
	).Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	m.Created = time.Unix(created, 0)
	return &m, nil
}
