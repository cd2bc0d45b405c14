// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// INPUT AREA COMPONENT
// =============================================================================

// InputArea is the styled message composer with a character counter.
type InputArea struct {
	input    textinput.Model
	maxChars int
	width    int
	focused  bool
	theme    *styles.Theme
}

// NewInputArea creates the composer.
func NewInputArea(theme *styles.Theme) *InputArea {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Width = 70
	ti.Prompt = "> "

	ti.PromptStyle = lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true)

	ti.TextStyle = lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	ti.PlaceholderStyle = lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true)

	ti.Cursor.Style = lipgloss.NewStyle().
		Foreground(styles.Cyan)

	return &InputArea{
		input:    ti,
		maxChars: 4096,
		width:    80,
		theme:    theme,
	}
}

// Focus focuses the input.
func (i *InputArea) Focus() tea.Cmd {
	i.focused = true
	return i.input.Focus()
}

// Blur removes focus from the input.
func (i *InputArea) Blur() {
	i.focused = false
	i.input.Blur()
}

// Focused returns whether the input is focused.
func (i *InputArea) Focused() bool {
	return i.focused
}

// SetWidth sets the input area width.
func (i *InputArea) SetWidth(width int) {
	i.width = width
	inputWidth := width - 10
	if inputWidth < 20 {
		inputWidth = 20
	}
	i.input.Width = inputWidth
}

// SetPlaceholder sets the placeholder text.
func (i *InputArea) SetPlaceholder(placeholder string) {
	i.input.Placeholder = placeholder
}

// Value returns the current input value.
func (i *InputArea) Value() string {
	return i.input.Value()
}

// SetValue sets the input value and moves the cursor to the end.
func (i *InputArea) SetValue(value string) {
	i.input.SetValue(value)
	i.input.CursorEnd()
}

// Reset clears the input.
func (i *InputArea) Reset() {
	i.input.Reset()
}

// Update handles input updates.
func (i *InputArea) Update(msg tea.Msg) (*InputArea, tea.Cmd) {
	var cmd tea.Cmd
	i.input, cmd = i.input.Update(msg)
	return i, cmd
}

// View renders the composer with the counter when it matters.
func (i *InputArea) View() string {
	line := i.input.View()
	if counter := i.renderCharCounter(); counter != "" {
		gap := i.width - lipgloss.Width(line) - lipgloss.Width(counter) - 2
		if gap > 0 {
			line += lipgloss.NewStyle().Width(gap).Render("") + counter
		}
	}
	return i.theme.InputContainer.Width(i.width).Render(line)
}

// renderCharCounter shows count only when nearing the limit.
func (i *InputArea) renderCharCounter() string {
	count := util.RuneLen(i.input.Value())
	if count < i.maxChars*3/4 {
		return ""
	}
	label := util.IntToString(count) + "/" + util.IntToString(i.maxChars)
	if count >= i.maxChars*9/10 {
		return i.theme.CharCountWarning.Render(label)
	}
	return i.theme.CharCount.Render(label)
}
