// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/ui/components"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Starting..."
	}
	if m.quitting {
		return "Goodbye.\n"
	}

	// Until the session is established the welcome screen fills the
	// terminal, with the status bar pinned underneath for connection
	// feedback.
	if !m.greeted {
		welcome := m.welcome.View()
		return lipgloss.JoinVertical(lipgloss.Left, welcome, m.statusBar.View())
	}

	if m.showFiles {
		return m.filePanel.Overlay(m.width, m.height)
	}

	var b strings.Builder
	b.WriteString(m.header.View())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.activityLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

// activityLine is the single row between transcript and composer.
// Toasts take it over when present, then the thinking spinner; blank
// otherwise so the layout never jumps.
func (m Model) activityLine() string {
	if toasts := m.toasts.Tick(); len(toasts) > 0 {
		return m.renderToastLine(toasts[len(toasts)-1])
	}
	if m.spinner.IsActive() {
		return m.spinner.View()
	}
	return ""
}

// renderToastLine compresses a toast into one status row. The boxed
// RenderToast form is for overlays; inline it would shift the layout.
func (m Model) renderToastLine(t components.Toast) string {
	// Long server errors must not wrap and push the composer around.
	text := util.TruncateWidth(t.Message, m.width-2)
	switch t.Kind {
	case components.ToastError:
		return m.theme.ErrorStyle.Render(styles.StatusIndicators.Error + " " + text)
	case components.ToastWarning:
		return m.theme.WarningStyle.Render(styles.StatusIndicators.Warning + " " + text)
	case components.ToastSuccess:
		return m.theme.SuccessStyle.Render(styles.StatusIndicators.Success + " " + text)
	default:
		return m.theme.InfoStyle.Render(styles.StatusIndicators.Info + " " + text)
	}
}
