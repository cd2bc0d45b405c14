// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// ConnState is the transport connection state shown in the bar.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOnline
	ConnOffline
)

func (c ConnState) String() string {
	switch c {
	case ConnOnline:
		return "online"
	case ConnOffline:
		return "offline"
	default:
		return "connecting"
	}
}

// StatusBar shows connection state, the retrieval toggle, index
// readiness, and the key shortcuts.
type StatusBar struct {
	theme *styles.Theme
	width int

	conn        ConnState
	ragEnabled  bool
	indexStatus string
	docCount    int
	msgCount    int
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme:       theme,
		width:       80,
		conn:        ConnConnecting,
		indexStatus: "unknown",
	}
}

// SetWidth sets the bar's render width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetConnection updates the connection state.
func (s *StatusBar) SetConnection(state ConnState) {
	s.conn = state
}

// SetRAG updates the retrieval toggle indicator.
func (s *StatusBar) SetRAG(enabled bool) {
	s.ragEnabled = enabled
}

// SetIndexStatus updates the document index readout.
func (s *StatusBar) SetIndexStatus(status string, docCount int) {
	s.indexStatus = status
	s.docCount = docCount
}

// SetMessageCount updates the transcript length readout.
func (s *StatusBar) SetMessageCount(n int) {
	s.msgCount = n
}

// View renders the bar at the current width.
func (s *StatusBar) View() string {
	left := s.renderConnection() + "  " + s.renderRAG()
	if s.width >= 100 {
		left += "  " + s.renderIndex()
	}
	right := s.renderShortcuts()
	if s.width >= 80 {
		right = s.theme.ShortcutDesc.Render(fmtNumber(s.msgCount)+" msgs") + "  " + right
	}

	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return s.theme.StatusBar.Width(s.width).Render(truncateToWidth(bar, s.width-2))
}

func (s *StatusBar) renderConnection() string {
	switch s.conn {
	case ConnOnline:
		return s.theme.Connected.Render(styles.StatusIndicators.Active + " " + s.conn.String())
	case ConnOffline:
		return s.theme.Disconnected.Render(styles.StatusIndicators.Error + " " + s.conn.String())
	default:
		return s.theme.ShortcutDesc.Render(styles.StatusIndicators.Pending + " " + s.conn.String())
	}
}

func (s *StatusBar) renderRAG() string {
	if s.ragEnabled {
		return s.theme.RAGOn.Render("RAG on")
	}
	return s.theme.RAGOff.Render("RAG off")
}

func (s *StatusBar) renderIndex() string {
	label := "index " + s.indexStatus
	if s.docCount > 0 {
		label += " (" + fmtNumber(s.docCount) + " docs)"
	}
	switch s.indexStatus {
	case "ready":
		return s.theme.SuccessStyle.Render(label)
	case "stale":
		return s.theme.WarningStyle.Render(label)
	default:
		return s.theme.ShortcutDesc.Render(label)
	}
}

func (s *StatusBar) renderShortcuts() string {
	if s.width < 70 {
		return s.theme.ShortcutKey.Render("^C") + s.theme.ShortcutDesc.Render(" quit")
	}
	pairs := [][2]string{
		{"^O", "files"},
		{"^G", "rag"},
		{"^E", "edit"},
		{"^R", "retry"},
		{"^C", "quit"},
	}
	var parts []string
	for _, p := range pairs {
		parts = append(parts, s.theme.ShortcutKey.Render(p[0])+s.theme.ShortcutDesc.Render(" "+p[1]))
	}
	return strings.Join(parts, "  ")
}

// truncateToWidth cuts a styled line down to the given display width.
func truncateToWidth(line string, width int) string {
	if lipgloss.Width(line) <= width {
		return line
	}
	return runewidth.Truncate(line, width, "")
}
