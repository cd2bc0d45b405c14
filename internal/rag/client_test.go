// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rag/process", r.URL.Path)
		w.Write([]byte(`{"success": true, "stats": {"total_files": 3, "processed_files": 2, "failed_files": 1, "total_chunks": 40, "errors": ["bad.pdf"]}}`))
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ProcessedFiles)
	assert.Equal(t, 40, stats.TotalChunks)
	assert.Len(t, stats.Errors, 1)
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rag/stats", r.URL.Path)
		w.Write([]byte(`{"success": true, "stats": {"status": "ready", "document_count": 128, "chunk_size": 1000, "collection_name": "documents"}}`))
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Ready())
	assert.Equal(t, 128, stats.DocumentCount)
}

func TestClearFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "index is locked"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Clear(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "index is locked", apiErr.Message)
}
