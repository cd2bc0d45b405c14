// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package files

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// TYPES
// =============================================================================

// Entry describes one file or folder in the workspace.
type Entry struct {
	Name              string `json:"name"`
	Path              string `json:"path"`
	Size              int64  `json:"size,omitempty"`
	SizeFormatted     string `json:"size_formatted,omitempty"`
	Modified          string `json:"modified,omitempty"`
	ModifiedFormatted string `json:"modified_formatted,omitempty"`
	Type              string `json:"type"`
	Icon              string `json:"icon,omitempty"`
	MimeType          string `json:"mime_type,omitempty"`
	ChildrenCount     int    `json:"children_count,omitempty"`
}

// IsDir reports whether the entry is a folder.
func (e Entry) IsDir() bool { return e.Type == "folder" }

// Listing is one directory's contents, folders first.
type Listing struct {
	Path       string  `json:"path"`
	Files      []Entry `json:"files"`
	TotalCount int     `json:"total_count"`
}

// Content is a text-file preview.
type Content struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	File     Entry  `json:"file"`
}

// APIError is a non-success response from the file API. Operations are
// not auto-retried; callers surface the message as a transient
// notification.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("file api: request failed with status %d", e.Status)
	}
	return "file api: " + e.Message
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend file API. Every response carries a
// success discriminator; anything without success=true is an APIError.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a file API client rooted at baseURL (e.g.
// "http://localhost:8130").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the common response framing.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doJSON performs a request and decodes the enveloped response into
// out (which must embed or sit beside the envelope fields).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed response"}
	}
	// Absence of success=true is uniformly a failure.
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

// =============================================================================
// OPERATIONS
// =============================================================================

// List returns the contents of a directory, "" for the root.
func (c *Client) List(ctx context.Context, path string) (*Listing, error) {
	var out Listing
	p := "/api/files"
	if path != "" {
		p += "?path=" + url.QueryEscape(path)
	}
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends one file as multipart form data. Extension allow-list
// and size cap are enforced server-side.
func (c *Client) Upload(ctx context.Context, dir, filename string, r io.Reader) (*Entry, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := w.WriteField("path", dir); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		File Entry `json:"file"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out.File, nil
}

// Content fetches a text file's preview content.
func (c *Client) Content(ctx context.Context, path string) (*Content, error) {
	var out Content
	p := "/api/files/" + url.PathEscape(path) + "/content"
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rename renames a file or folder in place.
func (c *Client) Rename(ctx context.Context, path, newName string) (*Entry, error) {
	var out struct {
		Item Entry `json:"item"`
	}
	p := "/api/files/" + url.PathEscape(path) + "/rename"
	body := map[string]string{"new_name": newName}
	if err := c.doJSON(ctx, http.MethodPost, p, body, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

// Delete removes a single file or folder.
func (c *Client) Delete(ctx context.Context, path string) error {
	p := "/api/files/" + url.PathEscape(path)
	return c.doJSON(ctx, http.MethodDelete, p, nil, nil)
}

// BulkDelete removes several paths in one call and returns the paths
// actually deleted.
func (c *Client) BulkDelete(ctx context.Context, paths []string) ([]string, error) {
	var out struct {
		DeletedFiles []string `json:"deleted_files"`
	}
	body := map[string][]string{"files": paths}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/bulk-delete", body, &out); err != nil {
		return nil, err
	}
	return out.DeletedFiles, nil
}

// Copy duplicates files into a destination directory; name conflicts
// get a numbered suffix server-side.
func (c *Client) Copy(ctx context.Context, paths []string, destination string) ([]string, error) {
	var out struct {
		CopiedFiles []string `json:"copied_files"`
	}
	body := map[string]any{"files": paths, "destination": destination}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/copy", body, &out); err != nil {
		return nil, err
	}
	return out.CopiedFiles, nil
}

// Move relocates files into a destination directory.
func (c *Client) Move(ctx context.Context, paths []string, destination string) ([]string, error) {
	var out struct {
		MovedFiles []string `json:"moved_files"`
	}
	body := map[string]any{"files": paths, "destination": destination}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/move", body, &out); err != nil {
		return nil, err
	}
	return out.MovedFiles, nil
}

// CreateFolder makes a new folder under parent ("" for the root).
func (c *Client) CreateFolder(ctx context.Context, parent, name string) (*Entry, error) {
	var out struct {
		Folder Entry `json:"folder"`
	}
	body := map[string]string{"path": parent, "folder_name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/api/files/folder", body, &out); err != nil {
		return nil, err
	}
	return &out.Folder, nil
}
