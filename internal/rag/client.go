// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// TYPES
// =============================================================================

// ProcessStats summarizes one indexing run over the uploads directory.
type ProcessStats struct {
	TotalFiles     int      `json:"total_files"`
	ProcessedFiles int      `json:"processed_files"`
	FailedFiles    int      `json:"failed_files"`
	TotalChunks    int      `json:"total_chunks"`
	Errors         []string `json:"errors,omitempty"`
}

// IndexStats describes the current state of the document index.
type IndexStats struct {
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	Collection    string `json:"collection_name,omitempty"`
}

// Ready reports whether the index is initialized and queryable.
func (s IndexStats) Ready() bool { return s.Status == "ready" }

// APIError is a non-success response from the RAG API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rag api: request failed with status %d", e.Status)
	}
	return "rag api: " + e.Message
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend document-index API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a RAG API client rooted at baseURL. Processing can
// chew through a large uploads directory, so the timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed response"}
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "malformed response"}
		}
	}
	return nil
}

// Process indexes every supported file in the uploads directory and
// returns the run's statistics.
func (c *Client) Process(ctx context.Context) (*ProcessStats, error) {
	var out struct {
		Stats ProcessStats `json:"stats"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/rag/process", &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

// Clear drops the whole document index.
func (c *Client) Clear(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/rag/clear", nil)
}

// Stats fetches the current index state.
func (c *Client) Stats(ctx context.Context) (*IndexStats, error) {
	var out struct {
		Stats IndexStats `json:"stats"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/rag/stats", &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}
