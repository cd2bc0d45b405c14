// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// =============================================================================
// DOCUMENT INDEX
// =============================================================================

const (
	// Chunking parameters for indexed documents.
	chunkSize    = 1000
	chunkOverlap = 200

	collectionName = "alfachat_documents"
)

// textExtensions are the file types the index will chunk. Binary
// formats are counted as failures the way the upload allow-list still
// admits them.
var textExtensions = map[string]bool{
	"txt": true, "md": true, "csv": true, "json": true, "xml": true,
	"py": true, "js": true, "html": true, "css": true,
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	content    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// ProcessStats summarizes one indexing run.
type ProcessStats struct {
	TotalFiles     int      `json:"total_files"`
	ProcessedFiles int      `json:"processed_files"`
	FailedFiles    int      `json:"failed_files"`
	TotalChunks    int      `json:"total_chunks"`
	Errors         []string `json:"errors"`
}

// DocumentIndex chunks workspace files into a persistent store for
// retrieval-augmented prompts. Chunking is fixed-size with overlap so
// sentence boundaries never gate progress.
type DocumentIndex struct {
	mu     sync.Mutex
	db     *sql.DB
	root   string
	logger *slog.Logger

	stale   bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenDocumentIndex opens (or creates) the chunk store at dbPath and
// starts watching root for changes that invalidate the index.
func OpenDocumentIndex(dbPath, root string, logger *slog.Logger) (*DocumentIndex, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, err
	}

	idx := &DocumentIndex{
		db:     db,
		root:   root,
		logger: logger,
		done:   make(chan struct{}),
	}
	idx.startWatcher()
	return idx, nil
}

// Close stops the watcher and releases the store.
func (idx *DocumentIndex) Close() error {
	close(idx.done)
	if idx.watcher != nil {
		idx.watcher.Close()
	}
	return idx.db.Close()
}

// startWatcher marks the index stale when workspace files change. A
// failed watcher is non-fatal; MarkStale still works from the upload
// path.
func (idx *DocumentIndex) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		idx.logger.Warn("index watcher unavailable", "error", err)
		return
	}
	if err := w.Add(idx.root); err != nil {
		idx.logger.Warn("index watcher unavailable", "error", err)
		w.Close()
		return
	}
	idx.watcher = w

	go func() {
		for {
			select {
			case <-idx.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					idx.MarkStale()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				idx.logger.Warn("index watcher error", "error", err)
			}
		}
	}()
}

// MarkStale records that workspace content changed since the last
// Process run.
func (idx *DocumentIndex) MarkStale() {
	idx.mu.Lock()
	idx.stale = true
	idx.mu.Unlock()
}

// Process re-indexes every supported file in the workspace, replacing
// the previous chunk set.
func (idx *DocumentIndex) Process(ctx context.Context) (ProcessStats, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stats := ProcessStats{Errors: []string{}}

	var files []string
	err := filepath.WalkDir(idx.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.TotalFiles = len(files)

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return stats, err
	}

	for _, path := range files {
		rel, relErr := filepath.Rel(idx.root, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)

		if !textExtensions[extension(path)] {
			stats.FailedFiles++
			stats.Errors = append(stats.Errors, rel+": unsupported file type")
			continue
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			stats.FailedFiles++
			stats.Errors = append(stats.Errors, rel+": "+readErr.Error())
			continue
		}
		if !utf8.Valid(data) {
			stats.FailedFiles++
			stats.Errors = append(stats.Errors, rel+": not valid text")
			continue
		}

		chunks := chunkText(string(data))
		for i, chunk := range chunks {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO chunks (id, source, ordinal, content) VALUES (?, ?, ?, ?)",
				chunkID(rel, i, chunk), rel, i, chunk,
			); err != nil {
				return stats, err
			}
		}
		stats.ProcessedFiles++
		stats.TotalChunks += len(chunks)
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	idx.stale = false

	idx.logger.Info("documents indexed",
		"files", stats.ProcessedFiles,
		"failed", stats.FailedFiles,
		"chunks", stats.TotalChunks)
	return stats, nil
}

// Clear drops every indexed chunk.
func (idx *DocumentIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// IndexStatus reports readiness for the status endpoint.
type IndexStatus struct {
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
	ChunkSize     int    `json:"chunk_size"`
	Collection    string `json:"collection_name"`
}

// Status reports the current index state. "ready" means chunks exist
// and nothing changed since the last Process.
func (idx *DocumentIndex) Status(ctx context.Context) (IndexStatus, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	st := IndexStatus{ChunkSize: chunkSize, Collection: collectionName}

	var count int
	err := idx.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT source) FROM chunks").Scan(&count)
	if err != nil {
		return st, err
	}
	st.DocumentCount = count

	switch {
	case count == 0:
		st.Status = "empty"
	case idx.stale:
		st.Status = "stale"
	default:
		st.Status = "ready"
	}
	return st, nil
}

// Search returns up to limit chunks containing the query, naive
// substring match over the stored text.
func (idx *DocumentIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows, err := idx.db.QueryContext(ctx,
		"SELECT content FROM chunks WHERE content LIKE ? ORDER BY source, ordinal LIMIT ?",
		"%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// chunkText splits text into fixed-size rune windows with overlap.
func chunkText(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	step := chunkSize - chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// chunkID derives a stable chunk identifier from source and content.
func chunkID(source string, ordinal int, content string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(source))
	h.Write([]byte{0, byte(ordinal), byte(ordinal >> 8)})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
