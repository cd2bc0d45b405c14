// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/render"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT VIEWPORT COMPONENT - Scrollable transcript area
// =============================================================================

// ChatViewport is the scrollable transcript area. It satisfies the
// scroll controller's surface contract (Offset, SetOffset, Height,
// ContentHeight), so smooth scroll-to-bottom animation drives it
// directly.
type ChatViewport struct {
	viewport    viewport.Model
	messages    []*model.Message
	width       int
	height      int
	ready       bool
	autoScroll  bool
	theme       *styles.Theme
	messageList *MessageList

	contentLines int
}

// NewChatViewport creates a new ChatViewport.
func NewChatViewport(theme *styles.Theme, renderer *render.Renderer) *ChatViewport {
	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return &ChatViewport{
		viewport:    vp,
		width:       80,
		height:      20,
		autoScroll:  true,
		theme:       theme,
		messageList: NewMessageList(theme, renderer),
	}
}

// SetSize updates the viewport dimensions.
func (cv *ChatViewport) SetSize(width, height int) {
	cv.width = width
	cv.height = height
	cv.viewport.Width = width
	cv.viewport.Height = height
	cv.messageList.SetWidth(width - 2)
	cv.ready = true

	cv.updateContent()
}

// SetShowTimestamps toggles timestamp lines in the transcript.
func (cv *ChatViewport) SetShowTimestamps(show bool) {
	cv.messageList.SetShowTimestamps(show)
}

// SetMessages replaces the displayed transcript.
func (cv *ChatViewport) SetMessages(messages []*model.Message) {
	cv.messages = messages
	cv.messageList.SetMessages(messages)
	cv.updateContent()
}

// Refresh re-renders the current messages, keeping the offset. Called
// when streaming appends content to the last message.
func (cv *ChatViewport) Refresh() {
	cv.updateContent()
}

func (cv *ChatViewport) updateContent() {
	content := cv.messageList.View()
	cv.viewport.SetContent(content)
	cv.contentLines = strings.Count(content, "\n") + 1
	if content == "" {
		cv.contentLines = 0
	}
}

// =============================================================================
// SCROLL SURFACE
// =============================================================================

// Offset returns the current scroll offset in lines.
func (cv *ChatViewport) Offset() int { return cv.viewport.YOffset }

// SetOffset positions the viewport at the given line offset.
func (cv *ChatViewport) SetOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	cv.viewport.SetYOffset(offset)
}

// Height returns the visible height in lines.
func (cv *ChatViewport) Height() int { return cv.height }

// ContentHeight returns the rendered transcript height in lines.
func (cv *ChatViewport) ContentHeight() int { return cv.contentLines }

// =============================================================================
// SCROLLING
// =============================================================================

// ScrollToBottom snaps to the bottom and re-enables follow mode.
func (cv *ChatViewport) ScrollToBottom() {
	cv.viewport.GotoBottom()
	cv.autoScroll = true
}

// ScrollToTop snaps to the top; the user took control.
func (cv *ChatViewport) ScrollToTop() {
	cv.viewport.GotoTop()
	cv.autoScroll = false
}

// ScrollUp scrolls up by the specified number of lines.
func (cv *ChatViewport) ScrollUp(lines int) {
	cv.autoScroll = false
	cv.SetOffset(cv.viewport.YOffset - lines)
}

// ScrollDown scrolls down, re-enabling follow mode at the bottom.
func (cv *ChatViewport) ScrollDown(lines int) {
	cv.SetOffset(cv.viewport.YOffset + lines)
	if cv.AtBottom() {
		cv.autoScroll = true
	}
}

// PageUp scrolls up by one page.
func (cv *ChatViewport) PageUp() {
	cv.ScrollUp(cv.height)
}

// PageDown scrolls down by one page.
func (cv *ChatViewport) PageDown() {
	cv.ScrollDown(cv.height)
}

// AtTop reports whether the viewport is at the top.
func (cv *ChatViewport) AtTop() bool { return cv.viewport.AtTop() }

// AtBottom reports whether the viewport is at the bottom.
func (cv *ChatViewport) AtBottom() bool { return cv.viewport.AtBottom() }

// AutoScroll reports whether follow mode is on.
func (cv *ChatViewport) AutoScroll() bool { return cv.autoScroll }

// SetAutoScroll sets follow mode.
func (cv *ChatViewport) SetAutoScroll(on bool) { cv.autoScroll = on }

// =============================================================================
// BUBBLETEA PLUMBING
// =============================================================================

// Update handles key and mouse scrolling.
func (cv *ChatViewport) Update(msg tea.Msg) (*ChatViewport, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			cv.ScrollUp(1)
			return cv, nil
		case "down", "j":
			cv.ScrollDown(1)
			return cv, nil
		case "pgup":
			cv.PageUp()
			return cv, nil
		case "pgdn", "pgdown":
			cv.PageDown()
			return cv, nil
		case "home", "g":
			cv.ScrollToTop()
			return cv, nil
		case "end", "G":
			cv.ScrollToBottom()
			return cv, nil
		}

	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			cv.ScrollUp(3)
			return cv, nil
		case tea.MouseWheelDown:
			cv.ScrollDown(3)
			return cv, nil
		}
	}

	var cmd tea.Cmd
	cv.viewport, cmd = cv.viewport.Update(msg)
	return cv, cmd
}

// View renders the viewport with edge indicators.
func (cv *ChatViewport) View() string {
	if !cv.ready {
		return ""
	}

	var result strings.Builder
	if top := cv.renderTopIndicator(); top != "" {
		result.WriteString(top)
		result.WriteString("\n")
	}
	result.WriteString(cv.viewport.View())
	if bottom := cv.renderBottomIndicator(); bottom != "" {
		result.WriteString("\n")
		result.WriteString(bottom)
	}
	return result.String()
}

func (cv *ChatViewport) renderTopIndicator() string {
	if cv.AtTop() || cv.contentLines <= cv.height {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(styles.TextMuted).Width(cv.width).Align(lipgloss.Center)
	return style.Render("^ more above ^")
}

func (cv *ChatViewport) renderBottomIndicator() string {
	if cv.AtBottom() || cv.contentLines <= cv.height {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(styles.TextMuted).Width(cv.width).Align(lipgloss.Center)
	return style.Render("v more below v")
}
