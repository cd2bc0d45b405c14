// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// FILE PANEL COMPONENT - Workspace browser overlay
// =============================================================================

// FilePanel is the workspace browser overlay. It navigates folders,
// filters by name, and marks files for attachment to the next message.
type FilePanel struct {
	theme  *styles.Theme
	width  int
	height int

	path     string
	entries  []files.Entry
	filter   string
	cursor   int
	selected map[string]bool

	loading bool
	errMsg  string
}

// NewFilePanel creates an empty panel rooted at the workspace top.
func NewFilePanel(theme *styles.Theme) *FilePanel {
	return &FilePanel{
		theme:    theme,
		width:    60,
		height:   20,
		selected: make(map[string]bool),
	}
}

// SetSize sets the panel dimensions.
func (p *FilePanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Path returns the folder currently listed.
func (p *FilePanel) Path() string { return p.path }

// SetLoading marks the panel as waiting on a listing.
func (p *FilePanel) SetLoading(loading bool) {
	p.loading = loading
	if loading {
		p.errMsg = ""
	}
}

// SetError shows a listing failure in place of entries.
func (p *FilePanel) SetError(msg string) {
	p.loading = false
	p.errMsg = msg
}

// SetEntries replaces the listing.
func (p *FilePanel) SetEntries(path string, entries []files.Entry) {
	p.path = path
	p.entries = entries
	p.cursor = 0
	p.filter = ""
	p.loading = false
	p.errMsg = ""
}

// visible returns entries passing the filter, case-folded.
func (p *FilePanel) visible() []files.Entry {
	if p.filter == "" {
		return p.entries
	}
	var out []files.Entry
	for _, e := range p.entries {
		if util.FoldContains(e.Name, p.filter) {
			out = append(out, e)
		}
	}
	return out
}

// Filter returns the active filter text.
func (p *FilePanel) Filter() string { return p.filter }

// AppendFilter adds one character to the filter.
func (p *FilePanel) AppendFilter(r rune) {
	p.filter += string(r)
	p.cursor = 0
}

// BackspaceFilter removes the last filter character.
func (p *FilePanel) BackspaceFilter() {
	if p.filter != "" {
		runes := []rune(p.filter)
		p.filter = string(runes[:len(runes)-1])
		p.cursor = 0
	}
}

// MoveUp moves the cursor up.
func (p *FilePanel) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// MoveDown moves the cursor down.
func (p *FilePanel) MoveDown() {
	if p.cursor < len(p.visible())-1 {
		p.cursor++
	}
}

// Current returns the entry under the cursor, or nil.
func (p *FilePanel) Current() *files.Entry {
	vis := p.visible()
	if p.cursor < 0 || p.cursor >= len(vis) {
		return nil
	}
	return &vis[p.cursor]
}

// ToggleSelect marks or unmarks the current file for attachment.
// Folders cannot be attached.
func (p *FilePanel) ToggleSelect() {
	e := p.Current()
	if e == nil || e.Type == "folder" {
		return
	}
	if p.selected[e.Path] {
		delete(p.selected, e.Path)
	} else {
		p.selected[e.Path] = true
	}
}

// Selected returns the marked paths in listing order.
func (p *FilePanel) Selected() []string {
	var out []string
	for _, e := range p.entries {
		if p.selected[e.Path] {
			out = append(out, e.Path)
		}
	}
	// Selections from other folders survive navigation.
	for path := range p.selected {
		found := false
		for _, o := range out {
			if o == path {
				found = true
				break
			}
		}
		if !found {
			out = append(out, path)
		}
	}
	return out
}

// ClearSelection unmarks everything.
func (p *FilePanel) ClearSelection() {
	p.selected = make(map[string]bool)
}

// ParentPath returns the folder above the current one.
func (p *FilePanel) ParentPath() string {
	if p.path == "" {
		return ""
	}
	idx := strings.LastIndex(p.path, "/")
	if idx < 0 {
		return ""
	}
	return p.path[:idx]
}

// View renders the panel box.
func (p *FilePanel) View() string {
	title := p.theme.PanelTitle.Render("Files")
	if p.path != "" {
		title += p.theme.PanelMeta.Render(" /" + p.path)
	}
	if p.filter != "" {
		title += p.theme.PanelMeta.Render("  filter: " + p.filter)
	}

	var body string
	switch {
	case p.loading:
		body = p.theme.PanelEmpty.Width(p.width - 4).Render("loading...")
	case p.errMsg != "":
		body = p.theme.ErrorMessage.Render(p.errMsg)
	default:
		body = p.renderEntries()
	}

	hint := p.theme.PanelMeta.Render("enter open | space attach | esc close")
	content := title + "\n\n" + body + "\n\n" + hint
	return p.theme.PanelBox.Width(p.width).Render(content)
}

func (p *FilePanel) renderEntries() string {
	vis := p.visible()
	if len(vis) == 0 {
		return p.theme.PanelEmpty.Width(p.width - 4).Render("no files")
	}

	maxRows := maxInt0(1, p.height-6)
	start := 0
	if p.cursor >= maxRows {
		start = p.cursor - maxRows + 1
	}

	var rows []string
	for i := start; i < len(vis) && i < start+maxRows; i++ {
		e := vis[i]
		marker := "  "
		if p.selected[e.Path] {
			marker = styles.StatusIndicators.Active + " "
		}
		name := e.Name
		if e.Type == "folder" {
			name += "/"
		}
		meta := ""
		if e.SizeFormatted != "" {
			meta = "  " + e.SizeFormatted
		}

		line := marker + name + p.theme.PanelMeta.Render(meta)
		style := p.theme.PanelItem
		if i == p.cursor {
			style = p.theme.PanelItemSelected
		}
		rows = append(rows, style.Width(p.width-4).Render(truncateToWidth(line, p.width-4)))
	}
	return strings.Join(rows, "\n")
}

// Overlay positions the panel over the chat view.
func (p *FilePanel) Overlay(bgWidth, bgHeight int) string {
	return lipgloss.Place(bgWidth, bgHeight, lipgloss.Center, lipgloss.Center, p.View())
}
