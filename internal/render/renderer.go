// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns message content into terminal output. It is a pure
// function of (role, content, attachments) plus the configured width;
// calling it twice with the same input yields the same output.
type Renderer struct {
	width int
	term  *glamour.TermRenderer

	// markdownEnabled false degrades to a plain-text passthrough; the
	// renderer itself is always present.
	markdownEnabled bool
}

// New creates a renderer wrapping glamour at the given word-wrap width.
func New(width int) *Renderer {
	r := &Renderer{width: width, markdownEnabled: true}
	r.initTerm()
	return r
}

// NewPassthrough creates a renderer with markdown disabled: prose is
// displayed verbatim, though code fences are still highlighted.
func NewPassthrough(width int) *Renderer {
	return &Renderer{width: width, markdownEnabled: false}
}

func (r *Renderer) initTerm() {
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		// Glamour unavailable: fall back to plain text rather than fail.
		r.term = nil
		return
	}
	r.term = term
}

// SetWidth updates the word-wrap width (terminal resize).
func (r *Renderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	if r.markdownEnabled {
		r.initTerm()
	}
}

// Width returns the configured wrap width.
func (r *Renderer) Width() int { return r.width }

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// RenderMessage renders a message's content for display. User and system
// text is shown verbatim (terminal text is inert); assistant content goes
// through the markdown pipeline, and the message's render state records
// whether that pass was partial or final. Attachments become a trailing
// source list.
func (r *Renderer) RenderMessage(msg *model.Message) string {
	var body string
	switch msg.Role {
	case model.RoleAssistant:
		body = r.Markdown(msg.GetDisplayContent())
		if msg.IsStreaming {
			msg.Render = model.RenderPending
		} else {
			msg.Render = model.RenderRendered
		}
	default:
		body = msg.GetDisplayContent()
	}

	if len(msg.Attachments) == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for _, att := range msg.Attachments {
		b.WriteString("  • ")
		b.WriteString(att.Name)
		if att.Size > 0 {
			b.WriteString(" (")
			b.WriteString(FormatSize(att.Size))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Markdown renders markdown content, sanitized first so raw HTML from
// model output is displayed as text rather than interpreted. On any
// renderer failure the plain source text is returned; the output is
// never blank for non-blank input.
func (r *Renderer) Markdown(content string) string {
	if !r.markdownEnabled || r.term == nil {
		// No glamour pass, but code fences still get highlighted.
		return HighlightFences(content)
	}

	rendered, err := r.term.Render(SanitizeMarkdown(content))
	if err != nil {
		return HighlightFences(content)
	}
	return rendered
}

// =============================================================================
// SIZE FORMATTING
// =============================================================================

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count in human-readable form.
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	f := float64(size)
	unit := 0
	for f >= 1024 && unit < len(sizeUnits)-1 {
		f /= 1024
		unit++
	}
	if unit == 0 {
		return util.IntToString(int(f)) + " B"
	}
	return util.FloatToStringPrec(f, 1) + " " + sizeUnits[unit]
}
