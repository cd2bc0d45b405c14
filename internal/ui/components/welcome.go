// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// WELCOME SCREEN COMPONENT
// =============================================================================

// Welcome is the empty-transcript splash shown before the first
// exchange.
type Welcome struct {
	theme   *styles.Theme
	width   int
	height  int
	version string
	server  string
}

// NewWelcome creates the splash screen.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{
		theme:  theme,
		width:  80,
		height: 24,
	}
}

// SetVersion sets the displayed version string.
func (w *Welcome) SetVersion(version string) {
	w.version = version
}

// SetServer sets the backend address line.
func (w *Welcome) SetServer(addr string) {
	w.server = addr
}

// SetSize updates layout dimensions.
func (w *Welcome) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// View renders the splash centered in the available area.
func (w Welcome) View() string {
	var lines []string
	lines = append(lines, w.renderLogo())
	if w.version != "" {
		lines = append(lines, w.theme.WelcomeVersion.Render("v"+w.version))
	}
	lines = append(lines, "")
	if w.server != "" {
		lines = append(lines, w.theme.WelcomeInfo.Render("server: "+w.server))
		lines = append(lines, "")
	}
	lines = append(lines, w.renderQuickStart()...)
	lines = append(lines, "")
	lines = append(lines, w.theme.WelcomePressKey.Render("Type a message and press Enter"))

	box := w.theme.WelcomeBox.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(w.width, w.height, lipgloss.Center, lipgloss.Center, box)
}

func (w Welcome) renderLogo() string {
	if w.width < 50 {
		return w.theme.WelcomeLogo.Render("ALFA AI")
	}
	logo := strings.Join([]string{
		`    _    _     _____ _      _    ___ `,
		`   / \  | |   |  ___/ \    / \  |_ _|`,
		`  / _ \ | |   | |_ / _ \  / _ \  | | `,
		` / ___ \| |___|  _/ ___ \/ ___ \ | | `,
		`/_/   \_\_____|_|/_/   \_\_/  \_\___|`,
	}, "\n")
	return w.theme.WelcomeLogo.Render(logo)
}

func (w Welcome) renderQuickStart() []string {
	rows := [][2]string{
		{"ctrl+o", "browse workspace files"},
		{"ctrl+g", "toggle retrieval context"},
		{"ctrl+e", "edit your last message"},
		{"ctrl+r", "regenerate the last reply"},
	}
	var out []string
	for _, row := range rows {
		out = append(out, w.theme.WelcomeKey.Render(row[0])+
			w.theme.WelcomeInfo.Render("  "+row[1]))
	}
	return out
}
