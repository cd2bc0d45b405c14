// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/render"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme()
}

// =============================================================================
// HELPERS
// =============================================================================

func TestFmtNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-5000, "-5,000"},
	}
	for _, tt := range tests {
		if got := fmtNumber(tt.n); got != tt.want {
			t.Errorf("fmtNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("alpha bravo charlie delta", 12)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 12 {
			t.Errorf("line %q exceeds width 12", line)
		}
	}
	if !strings.Contains(got, "alpha") || !strings.Contains(got, "delta") {
		t.Errorf("wrapped text lost words: %q", got)
	}
}

func TestWordWrapPreservesNewlines(t *testing.T) {
	got := wordWrap("one\ntwo", 40)
	if got != "one\ntwo" {
		t.Errorf("got %q, want newlines preserved", got)
	}
}

// =============================================================================
// MESSAGE BUBBLES
// =============================================================================

func TestMessageBubbleRoles(t *testing.T) {
	theme := testTheme()
	r := render.NewPassthrough(80)

	user := NewMessageBubble(model.NewUserMessage("hello there"), theme, r)
	user.SetWidth(80)
	if out := user.View(); !strings.Contains(out, "hello there") {
		t.Errorf("user bubble lost content: %q", out)
	}

	sys := NewMessageBubble(model.NewSystemMessage("system note"), theme, r)
	sys.SetWidth(80)
	if out := sys.View(); !strings.Contains(out, "system note") {
		t.Errorf("system bubble lost content: %q", out)
	}
}

func TestMessageBubbleStreaming(t *testing.T) {
	theme := testTheme()
	msg := model.NewAssistantMessage("m1")
	msg.AppendDelta("partial tok")

	b := NewMessageBubble(msg, theme, render.NewPassthrough(80))
	b.SetWidth(80)
	b.SetIsLatest(true)
	if out := b.View(); !strings.Contains(out, "partial tok") {
		t.Errorf("streaming bubble lost content: %q", out)
	}
}

func TestMessageListOrder(t *testing.T) {
	theme := testTheme()
	ml := NewMessageList(theme, render.NewPassthrough(80))
	ml.SetWidth(80)
	ml.SetMessages([]*model.Message{
		model.NewUserMessage("first"),
		model.NewSystemMessage("second"),
	})
	out := ml.View()
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("messages out of order")
	}
}

// =============================================================================
// VIEWPORT
// =============================================================================

func TestChatViewportSurface(t *testing.T) {
	cv := NewChatViewport(testTheme(), render.NewPassthrough(80))
	cv.SetSize(80, 10)

	var msgs []*model.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, model.NewUserMessage("message body text"))
	}
	cv.SetMessages(msgs)

	if cv.ContentHeight() <= cv.Height() {
		t.Fatalf("content height %d not larger than viewport %d",
			cv.ContentHeight(), cv.Height())
	}

	cv.SetOffset(5)
	if cv.Offset() != 5 {
		t.Errorf("offset = %d, want 5", cv.Offset())
	}
	cv.SetOffset(-3)
	if cv.Offset() != 0 {
		t.Errorf("offset = %d, want clamped to 0", cv.Offset())
	}
}

func TestChatViewportAutoScroll(t *testing.T) {
	cv := NewChatViewport(testTheme(), render.NewPassthrough(80))
	cv.SetSize(80, 5)

	var msgs []*model.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, model.NewUserMessage("line"))
	}
	cv.SetMessages(msgs)

	cv.ScrollUp(3)
	if cv.AutoScroll() {
		t.Error("manual scroll should disable follow mode")
	}
	cv.ScrollToBottom()
	if !cv.AutoScroll() {
		t.Error("scroll to bottom should re-enable follow mode")
	}
}

// =============================================================================
// TOASTS
// =============================================================================

func TestToastManagerExpiry(t *testing.T) {
	m := NewToastManager()
	m.AddError("boom")
	if !m.HasToasts() {
		t.Fatal("expected a toast")
	}

	live := m.Tick()
	if len(live) != 1 {
		t.Fatalf("live = %d, want 1", len(live))
	}
	// Force expiry.
	m.toasts[0].ExpiresAt = time.Now().Add(-time.Second)
	if live := m.Tick(); len(live) != 0 {
		t.Errorf("live after expiry = %d, want 0", len(live))
	}
}

func TestToastManagerCapsStack(t *testing.T) {
	m := NewToastManager()
	for i := 0; i < 6; i++ {
		m.AddStatus("note")
	}
	if n := len(m.Tick()); n != maxToasts {
		t.Errorf("stack = %d, want %d", n, maxToasts)
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

func TestStatusBarStates(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.SetWidth(120)
	sb.SetConnection(ConnOnline)
	sb.SetRAG(true)
	sb.SetIndexStatus("ready", 4)
	sb.SetMessageCount(7)

	out := sb.View()
	if !strings.Contains(out, "online") {
		t.Errorf("missing connection state: %q", out)
	}
	if !strings.Contains(out, "RAG on") {
		t.Errorf("missing RAG state: %q", out)
	}
}

// =============================================================================
// FILE PANEL
// =============================================================================

func panelEntries() []files.Entry {
	return []files.Entry{
		{Name: "docs", Path: "docs", Type: "folder"},
		{Name: "Notes.txt", Path: "Notes.txt", Type: "file", SizeFormatted: "1.2 KB"},
		{Name: "report.md", Path: "report.md", Type: "file", SizeFormatted: "3.4 KB"},
	}
}

func TestFilePanelFilter(t *testing.T) {
	p := NewFilePanel(testTheme())
	p.SetEntries("", panelEntries())

	p.AppendFilter('n')
	p.AppendFilter('o')
	vis := p.visible()
	if len(vis) != 1 || vis[0].Name != "Notes.txt" {
		t.Fatalf("filtered = %+v, want Notes.txt only", vis)
	}

	p.BackspaceFilter()
	p.BackspaceFilter()
	if len(p.visible()) != 3 {
		t.Errorf("filter not cleared")
	}
}

func TestFilePanelSelection(t *testing.T) {
	p := NewFilePanel(testTheme())
	p.SetEntries("", panelEntries())

	// Cursor starts on the folder; folders can't be attached.
	p.ToggleSelect()
	if len(p.Selected()) != 0 {
		t.Error("folder should not be selectable")
	}

	p.MoveDown()
	p.ToggleSelect()
	if sel := p.Selected(); len(sel) != 1 || sel[0] != "Notes.txt" {
		t.Fatalf("selected = %v", sel)
	}

	p.ToggleSelect()
	if len(p.Selected()) != 0 {
		t.Error("toggle should unmark")
	}
}

func TestFilePanelParentPath(t *testing.T) {
	p := NewFilePanel(testTheme())
	p.SetEntries("a/b/c", nil)
	if got := p.ParentPath(); got != "a/b" {
		t.Errorf("parent = %q, want a/b", got)
	}
	p.SetEntries("top", nil)
	if got := p.ParentPath(); got != "" {
		t.Errorf("parent = %q, want empty", got)
	}
}

// =============================================================================
// SPINNER
// =============================================================================

func TestSpinnerLifecycle(t *testing.T) {
	s := NewSpinner(testTheme())
	if s.IsActive() {
		t.Fatal("spinner active before start")
	}
	cmd := s.Start()
	if cmd == nil {
		t.Fatal("Start returned nil cmd")
	}
	if !s.IsActive() {
		t.Fatal("spinner inactive after start")
	}
	if out := s.View(); out == "" {
		t.Error("active spinner rendered empty")
	}
	s.Stop()
	if out := s.View(); out != "" {
		t.Errorf("stopped spinner rendered %q", out)
	}
}
