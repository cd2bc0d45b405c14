// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the one-line application banner.
type Header struct {
	theme    *styles.Theme
	width    int
	title    string
	subtitle string
}

// NewHeader creates the banner with the product title.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		theme:    theme,
		width:    80,
		title:    "Alfa AI",
		subtitle: "chat assistant",
	}
}

// SetWidth sets the render width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetSubtitle replaces the secondary label.
func (h *Header) SetSubtitle(subtitle string) {
	h.subtitle = subtitle
}

// View renders the banner.
func (h *Header) View() string {
	title := h.theme.HeaderBrand.Render(h.title)
	if h.width >= 60 && h.subtitle != "" {
		title += " " + h.theme.HeaderSubtitle.Render("- "+h.subtitle)
	}
	line := lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Width(h.width).
		Padding(0, 1)
	return line.Render(title)
}
