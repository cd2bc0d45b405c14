// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/alfachat-tui/internal/transport"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(Options{
		HistoryPath:    filepath.Join(dir, "history.db"),
		IndexPath:      filepath.Join(dir, "index.db"),
		UploadsDir:     filepath.Join(dir, "uploads"),
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.WithStreamDelay(0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func uploadFile(t *testing.T, ts *httptest.Server, name, content, path string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(content))
	mw.WriteField("path", path)
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/files/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

// ============================================================================
// FILE API
// ============================================================================

func TestUploadAndList(t *testing.T) {
	_, ts := newTestServer(t)

	resp := uploadFile(t, ts, "notes.txt", "hello world", "")
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", resp.StatusCode)
	}
	if body["success"] != true {
		t.Fatalf("upload success = %v", body["success"])
	}

	listResp, err := http.Get(ts.URL + "/api/files")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	listBody := decodeBody(t, listResp)
	files, ok := listBody["files"].([]any)
	if !ok || len(files) != 1 {
		t.Fatalf("files = %v, want one entry", listBody["files"])
	}
	entry := files[0].(map[string]any)
	if entry["name"] != "notes.txt" {
		t.Errorf("name = %v, want notes.txt", entry["name"])
	}
	if entry["type"] != "file" {
		t.Errorf("type = %v, want file", entry["type"])
	}
	if entry["icon"] != "file-text" {
		t.Errorf("icon = %v, want file-text", entry["icon"])
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	_, ts := newTestServer(t)

	resp := uploadFile(t, ts, "payload.exe", "MZ", "")
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if !strings.Contains(body["error"].(string), "not allowed") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUploadDuplicateNameGetsSuffix(t *testing.T) {
	srv, ts := newTestServer(t)

	uploadFile(t, ts, "report.md", "first", "").Body.Close()
	resp := uploadFile(t, ts, "report.md", "second", "")
	body := decodeBody(t, resp)

	file := body["file"].(map[string]any)
	if file["name"] != "report_1.md" {
		t.Errorf("name = %v, want report_1.md", file["name"])
	}
	if _, err := os.Stat(filepath.Join(srv.workspace.Root(), "report.md")); err != nil {
		t.Errorf("original missing: %v", err)
	}
}

func TestFileContent(t *testing.T) {
	_, ts := newTestServer(t)
	uploadFile(t, ts, "doc.txt", "line one\nline two", "").Body.Close()

	resp, err := http.Get(ts.URL + "/api/files/doc.txt/content")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	if body["content"] != "line one\nline two" {
		t.Errorf("content = %q", body["content"])
	}
}

func TestFileContentMissing(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/files/ghost.txt/content")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestRenameAndDelete(t *testing.T) {
	srv, ts := newTestServer(t)
	uploadFile(t, ts, "old.txt", "x", "").Body.Close()

	resp := postJSON(t, ts.URL+"/api/files/old.txt/rename", map[string]string{"new_name": "new.txt"})
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("rename failed: %v", body["error"])
	}
	if _, err := os.Stat(filepath.Join(srv.workspace.Root(), "new.txt")); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/files/new.txt", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	decodeBody(t, delResp)
	if _, err := os.Stat(filepath.Join(srv.workspace.Root(), "new.txt")); !os.IsNotExist(err) {
		t.Errorf("file still present after delete")
	}
}

func TestBulkDelete(t *testing.T) {
	_, ts := newTestServer(t)
	uploadFile(t, ts, "a.txt", "a", "").Body.Close()
	uploadFile(t, ts, "b.txt", "b", "").Body.Close()

	resp := postJSON(t, ts.URL+"/api/files/bulk-delete", map[string]any{
		"files": []string{"a.txt", "b.txt", "missing.txt"},
	})
	body := decodeBody(t, resp)
	deleted := body["deleted_files"].([]any)
	if len(deleted) != 2 {
		t.Errorf("deleted = %v, want 2 entries", deleted)
	}
}

func TestCopyAndMove(t *testing.T) {
	srv, ts := newTestServer(t)
	uploadFile(t, ts, "src.txt", "content", "").Body.Close()
	postJSON(t, ts.URL+"/api/files/folder", map[string]string{"path": "", "folder_name": "dest"}).Body.Close()

	resp := postJSON(t, ts.URL+"/api/files/copy", map[string]any{
		"files": []string{"src.txt"}, "destination": "dest",
	})
	body := decodeBody(t, resp)
	copied := body["copied_files"].([]any)
	if len(copied) != 1 || copied[0] != "dest/src.txt" {
		t.Fatalf("copied = %v", copied)
	}
	if _, err := os.Stat(filepath.Join(srv.workspace.Root(), "src.txt")); err != nil {
		t.Errorf("source missing after copy: %v", err)
	}

	moveResp := postJSON(t, ts.URL+"/api/files/move", map[string]any{
		"files": []string{"src.txt"}, "destination": "dest",
	})
	moveBody := decodeBody(t, moveResp)
	moved := moveBody["moved_files"].([]any)
	if len(moved) != 1 {
		t.Fatalf("moved = %v", moved)
	}
	// The copy already occupies dest/src.txt, so the move is suffixed.
	if moved[0] != "dest/src_1.txt" {
		t.Errorf("moved path = %v, want dest/src_1.txt", moved[0])
	}
	if _, err := os.Stat(filepath.Join(srv.workspace.Root(), "src.txt")); !os.IsNotExist(err) {
		t.Errorf("source still present after move")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, rel := range []string{"../outside.txt", "a/../../outside", "/../../etc/passwd"} {
		full, err := srv.workspace.resolve(rel)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(full, srv.workspace.Root()) {
			t.Errorf("resolve(%q) escaped workspace: %s", rel, full)
		}
	}
}

// ============================================================================
// DOCUMENT INDEX
// ============================================================================

func TestIndexProcessAndStatus(t *testing.T) {
	_, ts := newTestServer(t)
	uploadFile(t, ts, "doc.md", strings.Repeat("alpha bravo charlie ", 100), "").Body.Close()
	uploadFile(t, ts, "image.png", "\x89PNG", "").Body.Close()

	resp := postJSON(t, ts.URL+"/api/rag/process", nil)
	body := decodeBody(t, resp)
	stats := body["stats"].(map[string]any)
	if stats["processed_files"] != float64(1) {
		t.Errorf("processed_files = %v, want 1", stats["processed_files"])
	}
	if stats["failed_files"] != float64(1) {
		t.Errorf("failed_files = %v, want 1", stats["failed_files"])
	}
	if stats["total_chunks"].(float64) < 2 {
		t.Errorf("total_chunks = %v, want >= 2", stats["total_chunks"])
	}

	statusResp, err := http.Get(ts.URL + "/api/rag/stats")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	statusBody := decodeBody(t, statusResp)
	if statusBody["status"] != "ready" && statusBody["status"] != "stale" {
		t.Errorf("status = %v", statusBody["status"])
	}
	if statusBody["document_count"] != float64(1) {
		t.Errorf("document_count = %v, want 1", statusBody["document_count"])
	}
	if statusBody["chunk_size"] != float64(1000) {
		t.Errorf("chunk_size = %v, want 1000", statusBody["chunk_size"])
	}
}

func TestIndexClear(t *testing.T) {
	_, ts := newTestServer(t)
	uploadFile(t, ts, "doc.txt", "searchable content", "").Body.Close()
	postJSON(t, ts.URL+"/api/rag/process", nil).Body.Close()

	postJSON(t, ts.URL+"/api/rag/clear", nil).Body.Close()

	statusResp, err := http.Get(ts.URL + "/api/rag/stats")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	statusBody := decodeBody(t, statusResp)
	if statusBody["status"] != "empty" {
		t.Errorf("status after clear = %v, want empty", statusBody["status"])
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := chunkText(text)
	// Windows of 1000 advancing by 800: 0-1000, 800-1800, 1600-2500.
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 1000 {
		t.Errorf("chunk 0 len = %d, want 1000", len(chunks[0]))
	}
	if len(chunks[2]) != 900 {
		t.Errorf("chunk 2 len = %d, want 900", len(chunks[2]))
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := chunkText("   \n  "); chunks != nil {
		t.Errorf("chunks = %v, want nil", chunks)
	}
}

// ============================================================================
// WEBSOCKET CHANNEL
// ============================================================================

func dialWS(t *testing.T, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if userID != "" {
		url += "?user_id=" + userID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) transport.Envelope {
	t.Helper()
	var env transport.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, event transport.EventType, payload any) {
	t.Helper()
	env, err := transport.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWSConnectedEvent(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "")

	env := readEnvelope(t, conn)
	if env.Event != transport.EventConnected {
		t.Fatalf("event = %s, want connected", env.Event)
	}
	var ev transport.ConnectedEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.UserID == "" {
		t.Error("user_id empty")
	}
	if len(ev.Messages) != 0 {
		t.Errorf("messages = %v, want empty", ev.Messages)
	}
}

func TestWSSendMessageStreams(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithResponder(NewScriptedResponder("This is the scripted reply."))

	conn := dialWS(t, ts, "")
	connected := readEnvelope(t, conn)

	var info transport.ConnectedEvent
	json.Unmarshal(connected.Data, &info)

	sendEnvelope(t, conn, transport.EventSendMessage, transport.SendMessageEvent{
		UserID:  info.UserID,
		Message: "hello",
	})

	var assembled strings.Builder
	var messageID string
	for {
		env := readEnvelope(t, conn)
		if env.Event != transport.EventStream {
			t.Fatalf("event = %s, want stream", env.Event)
		}
		var ev transport.StreamEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if messageID == "" {
			messageID = ev.MessageID
		} else if ev.MessageID != messageID {
			t.Fatalf("message_id changed mid-stream: %s vs %s", ev.MessageID, messageID)
		}
		assembled.WriteString(ev.Content)
		if ev.Done {
			break
		}
	}
	if assembled.String() != "This is the scripted reply." {
		t.Errorf("assembled = %q", assembled.String())
	}
}

func TestWSHistoryReplayedOnReconnect(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithResponder(NewScriptedResponder("reply one"))

	conn := dialWS(t, ts, "")
	connected := readEnvelope(t, conn)
	var info transport.ConnectedEvent
	json.Unmarshal(connected.Data, &info)

	sendEnvelope(t, conn, transport.EventSendMessage, transport.SendMessageEvent{
		UserID: info.UserID, Message: "remember me",
	})
	for {
		env := readEnvelope(t, conn)
		var ev transport.StreamEvent
		json.Unmarshal(env.Data, &ev)
		if ev.Done {
			break
		}
	}
	conn.Close()

	again := dialWS(t, ts, info.UserID)
	env := readEnvelope(t, again)
	var replay transport.ConnectedEvent
	if err := json.Unmarshal(env.Data, &replay); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if replay.UserID != info.UserID {
		t.Errorf("user_id = %s, want %s", replay.UserID, info.UserID)
	}
	if len(replay.Messages) != 2 {
		t.Fatalf("history = %d messages, want 2", len(replay.Messages))
	}
	if replay.Messages[0].Role != "user" || replay.Messages[0].Content != "remember me" {
		t.Errorf("first = %+v", replay.Messages[0])
	}
	if replay.Messages[1].Role != "assistant" || replay.Messages[1].Content != "reply one" {
		t.Errorf("second = %+v", replay.Messages[1])
	}
}

func TestWSUpdateMessageRegenerates(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithResponder(NewScriptedResponder("first answer", "regenerated answer"))

	conn := dialWS(t, ts, "")
	connected := readEnvelope(t, conn)
	var info transport.ConnectedEvent
	json.Unmarshal(connected.Data, &info)

	sendEnvelope(t, conn, transport.EventSendMessage, transport.SendMessageEvent{
		UserID: info.UserID, Message: "original question", MessageID: "q-1",
	})
	for {
		env := readEnvelope(t, conn)
		var ev transport.StreamEvent
		json.Unmarshal(env.Data, &ev)
		if ev.Done {
			break
		}
	}

	sendEnvelope(t, conn, transport.EventUpdateMessage, transport.UpdateMessageEvent{
		MessageID: "q-1", NewContent: "edited question",
	})

	env := readEnvelope(t, conn)
	if env.Event != transport.EventMessageUpdated {
		t.Fatalf("event = %s, want message_updated", env.Event)
	}
	var updated transport.MessageUpdatedEvent
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if updated.NewContent != "regenerated answer" {
		t.Errorf("new_content = %q", updated.NewContent)
	}

	// Both the edit and the regeneration are persisted.
	msgs, err := srv.history.List(info.UserID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if msgs[0].Content != "edited question" {
		t.Errorf("stored user content = %q", msgs[0].Content)
	}
	if msgs[1].Content != "regenerated answer" {
		t.Errorf("stored assistant content = %q", msgs[1].Content)
	}
}

func TestWSEmptyMessageRejected(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "")
	readEnvelope(t, conn)

	sendEnvelope(t, conn, transport.EventSendMessage, transport.SendMessageEvent{Message: ""})

	env := readEnvelope(t, conn)
	if env.Event != transport.EventError {
		t.Fatalf("event = %s, want error", env.Event)
	}
}

func TestWSUpdateUnknownMessage(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "")
	readEnvelope(t, conn)

	sendEnvelope(t, conn, transport.EventUpdateMessage, transport.UpdateMessageEvent{
		MessageID: "ghost", NewContent: "anything",
	})

	env := readEnvelope(t, conn)
	if env.Event != transport.EventError {
		t.Fatalf("event = %s, want error", env.Event)
	}
}

// ============================================================================
// HISTORY STORE
// ============================================================================

func TestHistoryNextAssistantAfter(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenHistory(filepath.Join(dir, "h.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer store.Close()

	msgs := []StoredMessage{
		{ID: "u1", UserID: "alice", Role: "user", Content: "q1", Created: time.Now()},
		{ID: "a1", UserID: "alice", Role: "assistant", Content: "r1", Created: time.Now()},
		{ID: "u2", UserID: "alice", Role: "user", Content: "q2", Created: time.Now()},
		{ID: "a2", UserID: "alice", Role: "assistant", Content: "r2", Created: time.Now()},
	}
	for _, m := range msgs {
		if err := store.Append(m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	next, err := store.NextAssistantAfter("u2")
	if err != nil {
		t.Fatalf("NextAssistantAfter: %v", err)
	}
	if next.ID != "a2" {
		t.Errorf("next = %s, want a2", next.ID)
	}

	if _, err := store.NextAssistantAfter("a2"); err != ErrMessageNotFound {
		t.Errorf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestHistoryReplaceContentUnknown(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenHistory(filepath.Join(dir, "h.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer store.Close()

	if err := store.ReplaceContent("nope", "x"); err != ErrMessageNotFound {
		t.Errorf("err = %v, want ErrMessageNotFound", err)
	}
}
