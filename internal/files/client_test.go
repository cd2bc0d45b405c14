// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package files

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("path") != "docs" {
			t.Errorf("query path = %s", r.URL.Query().Get("path"))
		}
		w.Write([]byte(`{
			"success": true,
			"path": "docs",
			"files": [
				{"name": "sub", "path": "docs/sub", "type": "folder", "children_count": 2},
				{"name": "a.txt", "path": "docs/a.txt", "type": "file", "size": 12}
			],
			"total_count": 2
		}`))
	}))
	defer srv.Close()

	listing, err := NewClient(srv.URL).List(context.Background(), "docs")
	if err != nil {
		t.Fatal(err)
	}
	if listing.TotalCount != 2 || len(listing.Files) != 2 {
		t.Fatalf("listing = %+v", listing)
	}
	if !listing.Files[0].IsDir() || listing.Files[1].IsDir() {
		t.Error("entry types wrong")
	}
}

func TestMissingSuccessIsFailure(t *testing.T) {
	// A 200 without success=true is still a failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files": []}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).List(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
}

func TestErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success": false, "error": "File type not allowed"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Upload(context.Background(), "", "x.exe", strings.NewReader("mz"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Message != "File type not allowed" || apiErr.Status != http.StatusBadRequest {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if hdr.Filename != "notes.md" {
			t.Errorf("filename = %s", hdr.Filename)
		}
		if r.FormValue("path") != "docs" {
			t.Errorf("path field = %s", r.FormValue("path"))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success": true, "file": {"name": "notes.md", "path": "docs/notes.md", "type": "file", "size": 5}}`))
	}))
	defer srv.Close()

	entry, err := NewClient(srv.URL).Upload(context.Background(), "docs", "notes.md", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Path != "docs/notes.md" || entry.Size != 5 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestBulkDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/bulk-delete" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "deleted_files": ["a.txt", "b.txt"]}`))
	}))
	defer srv.Close()

	deleted, err := NewClient(srv.URL).BulkDelete(context.Background(), []string{"a.txt", "b.txt", "gone.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestContentPathEscaping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// PathEscape keeps the encoded form in RawPath.
		if !strings.HasSuffix(r.URL.Path, "/content") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "content": "hi", "mime_type": "text/plain", "file": {"name": "a b.txt", "type": "file"}}`))
	}))
	defer srv.Close()

	content, err := NewClient(srv.URL).Content(context.Background(), "a b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if content.Content != "hi" || content.MimeType != "text/plain" {
		t.Errorf("content = %+v", content)
	}
}
