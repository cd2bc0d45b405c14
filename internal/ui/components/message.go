// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/render"
	"github.com/jeranaias/alfachat-tui/internal/stream"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders a single chat message with role-appropriate
// styling. Assistant messages go through the markdown renderer;
// streaming content stays plain until it holds a complete construct.
type MessageBubble struct {
	message  *model.Message
	theme    *styles.Theme
	renderer *render.Renderer
	width    int
	isLatest bool
	showTime bool
}

// NewMessageBubble creates a bubble for one message.
func NewMessageBubble(msg *model.Message, theme *styles.Theme, renderer *render.Renderer) *MessageBubble {
	return &MessageBubble{
		message:  msg,
		theme:    theme,
		renderer: renderer,
		width:    80,
		showTime: true,
	}
}

// SetWidth sets the render width.
func (b *MessageBubble) SetWidth(width int) {
	b.width = width
}

// SetIsLatest marks this bubble as the most recent message.
func (b *MessageBubble) SetIsLatest(latest bool) {
	b.isLatest = latest
}

// SetShowTimestamp toggles the timestamp line.
func (b *MessageBubble) SetShowTimestamp(show bool) {
	b.showTime = show
}

// View renders the bubble.
func (b *MessageBubble) View() string {
	if b.message == nil {
		return ""
	}
	switch b.message.Role {
	case model.RoleUser:
		return b.renderUserBubble()
	case model.RoleAssistant:
		return b.renderAssistantBubble()
	case model.RoleSystem:
		return b.renderSystemBubble()
	default:
		return b.renderUserBubble()
	}
}

func (b *MessageBubble) renderUserBubble() string {
	bubbleWidth := minInt(b.width-8, maxInt0(20, b.width*3/4))
	content := wordWrap(b.message.GetDisplayContent(), bubbleWidth-4)

	var parts []string
	parts = append(parts, b.theme.UserBubble.Width(bubbleWidth).Render(content))
	if att := b.renderAttachments(); att != "" {
		parts = append(parts, att)
	}
	if ts := b.renderTimestamp(); ts != "" {
		parts = append(parts, ts)
	}

	block := lipgloss.JoinVertical(lipgloss.Right, parts...)
	return lipgloss.PlaceHorizontal(b.width, lipgloss.Right, block)
}

func (b *MessageBubble) renderAssistantBubble() string {
	bubbleWidth := minInt(b.width-4, maxInt0(20, b.width*3/4))

	var content string
	if b.message.Errored {
		content = b.theme.ErrorMessage.Render(b.message.GetDisplayContent())
		return b.theme.FailedBubble.Width(bubbleWidth).Render(content)
	}

	if b.message.IsStreaming {
		// Tokens arrive as plain text until the partial holds at least
		// one complete markdown construct; re-parsing earlier flashes
		// malformed output. The full pass runs once on completion.
		shown := b.message.GetDisplayContent()
		if b.renderer != nil && stream.ShouldRenderMarkdown(shown) {
			b.renderer.SetWidth(bubbleWidth - 4)
			content = strings.TrimRight(b.renderer.RenderMessage(b.message), "\n")
		} else {
			content = wordWrap(shown, bubbleWidth-4)
		}
		content += b.renderStreamingCursor()
	} else if b.renderer != nil {
		b.renderer.SetWidth(bubbleWidth - 4)
		content = strings.TrimRight(b.renderer.RenderMessage(b.message), "\n")
	} else {
		content = wordWrap(b.message.GetDisplayContent(), bubbleWidth-4)
	}

	var parts []string
	parts = append(parts, b.theme.AssistantBubble.Width(bubbleWidth).Render(content))
	if ts := b.renderTimestamp(); ts != "" {
		parts = append(parts, ts)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (b *MessageBubble) renderSystemBubble() string {
	bubbleWidth := minInt(b.width-4, maxInt0(20, b.width*2/3))
	content := wordWrap(b.message.GetDisplayContent(), bubbleWidth-4)
	block := b.theme.SystemBubble.Width(bubbleWidth).Render(content)
	return lipgloss.PlaceHorizontal(b.width, lipgloss.Center, block)
}

func (b *MessageBubble) renderAttachments() string {
	if len(b.message.Attachments) == 0 {
		return ""
	}
	var lines []string
	for _, att := range b.message.Attachments {
		line := "+ " + att.Name
		if att.Size > 0 {
			line += " (" + render.FormatSize(att.Size) + ")"
		}
		lines = append(lines, b.theme.Attachment.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (b *MessageBubble) renderTimestamp() string {
	if !b.showTime || b.message.Timestamp.IsZero() {
		return ""
	}
	label := formatTime(b.message.Timestamp)
	if b.message.Edited {
		label += " (edited)"
	}
	return b.theme.Timestamp.Render(label)
}

func (b *MessageBubble) renderStreamingCursor() string {
	if !b.isLatest {
		return ""
	}
	return b.theme.Spinner.Render(styles.TypingCursor[0])
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

// wordWrap wraps text at word boundaries using display width, so wide
// runes don't overflow the bubble.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteString("\n")
		}
		if runewidth.StringWidth(line) <= width {
			out.WriteString(line)
			continue
		}

		lineWidth := 0
		for j, word := range strings.Fields(line) {
			w := runewidth.StringWidth(word)
			if j > 0 && lineWidth+1+w > width {
				out.WriteString("\n")
				lineWidth = 0
			} else if j > 0 {
				out.WriteString(" ")
				lineWidth++
			}
			out.WriteString(word)
			lineWidth += w
		}
	}
	return out.String()
}

// formatTime renders HH:MM without fmt.
func formatTime(t time.Time) string {
	pad := func(n int) string {
		if n < 10 {
			return "0" + util.IntToString(n)
		}
		return util.IntToString(n)
	}
	return pad(t.Hour()) + ":" + pad(t.Minute())
}

// =============================================================================
// MESSAGE LIST COMPONENT
// =============================================================================

// MessageList renders an ordered transcript of bubbles.
type MessageList struct {
	messages       []*model.Message
	theme          *styles.Theme
	renderer       *render.Renderer
	width          int
	showTimestamps bool
}

// NewMessageList creates an empty list.
func NewMessageList(theme *styles.Theme, renderer *render.Renderer) *MessageList {
	return &MessageList{
		theme:          theme,
		renderer:       renderer,
		width:          80,
		showTimestamps: true,
	}
}

// SetMessages replaces the displayed messages.
func (ml *MessageList) SetMessages(messages []*model.Message) {
	ml.messages = messages
}

// SetWidth sets the render width for all bubbles.
func (ml *MessageList) SetWidth(width int) {
	ml.width = width
}

// SetShowTimestamps toggles timestamp lines on every bubble.
func (ml *MessageList) SetShowTimestamps(show bool) {
	ml.showTimestamps = show
}

// View renders the full transcript.
func (ml *MessageList) View() string {
	if len(ml.messages) == 0 {
		return ""
	}
	var blocks []string
	for i, msg := range ml.messages {
		bubble := NewMessageBubble(msg, ml.theme, ml.renderer)
		bubble.SetWidth(ml.width)
		bubble.SetIsLatest(i == len(ml.messages)-1)
		bubble.SetShowTimestamp(ml.showTimestamps)
		blocks = append(blocks, bubble.View())
	}
	return strings.Join(blocks, "\n\n")
}
