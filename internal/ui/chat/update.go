// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file is the update loop: window sizing, key handling, inbound
// envelope dispatch and the reveal tick all land here. The bridge and
// coordinator are only ever touched from this loop.
package chat

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/stream"
	"github.com/jeranaias/alfachat-tui/internal/transport"
	"github.com/jeranaias/alfachat-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update routes Bubble Tea messages to the right handler.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		vp, cmd := m.viewport.Update(msg)
		m.viewport = vp
		return m, cmd

	case connOpenedMsg:
		m.client = msg.client
		m.sender.sender = msg.client
		return m, waitForEnvelope(m.envelopes, m.readErrs)

	case connFailedMsg:
		m.state = StateOffline
		m.statusBar.SetConnection(components.ConnOffline)
		m.logger.Warn("dial failed", "error", msg.err)
		m.toasts.AddWarning("Cannot reach server; retrying")
		return m, scheduleReconnect()

	case connClosedMsg:
		if m.quitting {
			return m, tea.Quit
		}
		m.state = StateOffline
		m.client = nil
		m.sender.sender = nil
		m.statusBar.SetConnection(components.ConnOffline)
		if msg.err != nil {
			m.logger.Warn("connection lost", "error", msg.err)
		}
		m.toasts.AddWarning("Connection lost; reconnecting")
		return m, scheduleReconnect()

	case reconnectMsg:
		m.state = StateConnecting
		m.statusBar.SetConnection(components.ConnConnecting)
		return m, m.connect()

	case envelopeMsg:
		return m.handleEnvelope(msg)

	case revealTickMsg:
		return m.handleRevealTick(time.Time(msg))

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTickCmd()

	case components.SpinnerTickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case listingMsg:
		return m.handleListing(msg)

	case indexStatusMsg:
		if msg.err == nil {
			m.statusBar.SetIndexStatus(msg.stats.Status, msg.stats.DocumentCount)
		}
		return m, nil

	case processDoneMsg:
		return m.handleProcessDone(msg)
	}

	return m, nil
}

// =============================================================================
// RESIZE
// =============================================================================

// handleResize lays the components out for the new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	m.theme.SetSize(msg.Width, msg.Height)
	m.header.SetWidth(msg.Width)
	m.input.SetWidth(msg.Width)
	m.statusBar.SetWidth(msg.Width)
	// The welcome screen shares the terminal with the status bar.
	m.welcome.SetSize(msg.Width, msg.Height-countLines(m.statusBar.View()))
	m.renderer.SetWidth(msg.Width)

	// Header, input and status bar are single blocks; whatever is left
	// belongs to the transcript. One extra line is reserved for the
	// spinner so the layout does not jump when a response starts.
	chrome := 0
	for _, view := range []string{m.header.View(), m.input.View(), m.statusBar.View()} {
		chrome += countLines(view)
	}
	chrome++
	vpHeight := msg.Height - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.SetSize(msg.Width, vpHeight)

	panelW := msg.Width * 2 / 3
	if panelW < 40 {
		panelW = msg.Width
	}
	panelH := msg.Height * 2 / 3
	if panelH < 10 {
		panelH = msg.Height
	}
	m.filePanel.SetSize(panelW, panelH)

	m.refreshTranscript()
	return m
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.quitting = true
		if m.client != nil {
			m.client.Close()
			// The read loop delivers connClosedMsg, which quits.
			return m, nil
		}
		return m, tea.Quit
	}

	if m.showFiles {
		return m.handleFilePanelKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.editing {
			m.cancelEdit()
			return m, nil
		}
		// During a stream, Esc skips the reveal animation and shows
		// everything buffered so far.
		m.skipReveal()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keyMap.Edit):
		return m.beginEdit()

	case key.Matches(msg, m.keyMap.Regenerate):
		return m.regenerate()

	case key.Matches(msg, m.keyMap.CopyLast):
		m.copyLastResponse()
		return m, nil

	case key.Matches(msg, m.keyMap.Files):
		m.showFiles = true
		m.filePanel.SetLoading(true)
		return m, loadListing(m.filesAPI, m.filePanel.Path())

	case key.Matches(msg, m.keyMap.RAG):
		m.ragEnabled = !m.ragEnabled
		m.statusBar.SetRAG(m.ragEnabled)
		if m.ragEnabled {
			m.toasts.AddStatus("RAG context enabled")
			return m, loadIndexStatus(m.ragAPI)
		}
		m.toasts.AddStatus("RAG context disabled")
		return m, nil

	case key.Matches(msg, m.keyMap.Up):
		m.viewport.ScrollUp(1)
		return m, nil
	case key.Matches(msg, m.keyMap.Down):
		m.viewport.ScrollDown(1)
		return m, nil
	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.PageUp()
		return m, nil
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.PageDown()
		return m, nil
	case key.Matches(msg, m.keyMap.Home):
		m.viewport.ScrollToTop()
		return m, nil
	case key.Matches(msg, m.keyMap.End):
		m.viewport.ScrollToBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleFilePanelKey drives the file panel while it is open. Printable
// characters feed the filter, so the panel key set is fixed.
func (m Model) handleFilePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+o":
		m.showFiles = false
		m.attachments = m.filePanel.Selected()
		if n := len(m.attachments); n > 0 {
			m.toasts.AddStatus(strconv.Itoa(n) + " file(s) attached to next message")
		}
		return m, nil

	case "enter":
		cur := m.filePanel.Current()
		if cur == nil {
			return m, nil
		}
		if cur.IsDir() {
			m.filePanel.SetLoading(true)
			return m, loadListing(m.filesAPI, cur.Path)
		}
		m.filePanel.ToggleSelect()
		return m, nil

	case " ":
		m.filePanel.ToggleSelect()
		return m, nil

	case "up":
		m.filePanel.MoveUp()
		return m, nil
	case "down":
		m.filePanel.MoveDown()
		return m, nil

	case "backspace":
		if m.filePanel.Filter() != "" {
			m.filePanel.BackspaceFilter()
			return m, nil
		}
		if parent := m.filePanel.ParentPath(); parent != m.filePanel.Path() {
			m.filePanel.SetLoading(true)
			return m, loadListing(m.filesAPI, parent)
		}
		return m, nil

	case "ctrl+p":
		// Rebuild the document index from the panel.
		m.toasts.AddStatus("Indexing documents")
		return m, processIndex(m.ragAPI)
	}

	if msg.Type == tea.KeyRunes {
		for _, r := range msg.Runes {
			m.filePanel.AppendFilter(r)
		}
	}
	return m, nil
}

// =============================================================================
// SENDING AND EDITING
// =============================================================================

// submit sends the input line, or saves an in-place edit.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if m.editing {
		if err := m.bridge.UpdateMessage(m.editID, text); err != nil {
			m.notifySendError(err)
			return m, nil
		}
		m.cancelEdit()
		m.refreshTranscript()
		var cmds []tea.Cmd
		m.syncSpinner(&cmds)
		cmds = append(cmds, m.ensureTick())
		return m, tea.Batch(cmds...)
	}

	opts := transport.SendOptions{
		FileContext: strings.Join(m.attachments, ", "),
		UseRAG:      m.ragEnabled,
	}
	if _, err := m.bridge.SendMessage(text, opts); err != nil {
		m.notifySendError(err)
		return m, nil
	}

	m.input.Reset()
	m.attachments = nil
	m.filePanel.ClearSelection()
	m.refreshTranscript()
	m.viewport.SetAutoScroll(true)
	m.scroller.ForceToBottom()

	var cmds []tea.Cmd
	m.syncSpinner(&cmds)
	cmds = append(cmds, m.ensureTick())
	return m, tea.Batch(cmds...)
}

// beginEdit loads the last user message into the input line.
func (m Model) beginEdit() (tea.Model, tea.Cmd) {
	last := m.transcript.LastOfRole(model.RoleUser)
	if last == nil {
		m.toasts.AddWarning("No message to edit")
		return m, nil
	}
	m.editing = true
	m.editID = last.ID
	m.input.SetValue(last.GetDisplayContent())
	m.input.SetPlaceholder("Edit message, Enter saves, Esc cancels")
	return m, nil
}

// cancelEdit drops edit mode without saving.
func (m *Model) cancelEdit() {
	m.editing = false
	m.editID = ""
	m.input.Reset()
	m.input.SetPlaceholder("Type a message...")
}

// regenerate resends the last user message for a fresh response.
func (m Model) regenerate() (tea.Model, tea.Cmd) {
	last := m.transcript.LastOfRole(model.RoleUser)
	if last == nil {
		m.toasts.AddWarning("Nothing to regenerate")
		return m, nil
	}
	opts := transport.SendOptions{
		UseRAG:     m.ragEnabled,
		Regenerate: true,
	}
	if _, err := m.bridge.SendMessage(last.GetDisplayContent(), opts); err != nil {
		m.notifySendError(err)
		return m, nil
	}
	m.viewport.SetAutoScroll(true)
	m.scroller.ForceToBottom()

	var cmds []tea.Cmd
	m.syncSpinner(&cmds)
	cmds = append(cmds, m.ensureTick())
	return m, tea.Batch(cmds...)
}

// copyLastResponse puts the newest assistant message on the system
// clipboard via OSC 52.
func (m *Model) copyLastResponse() {
	last := m.transcript.LastOfRole(model.RoleAssistant)
	if last == nil {
		m.toasts.AddWarning("No response to copy")
		return
	}
	termenv.NewOutput(os.Stdout).Copy(last.GetDisplayContent())
	m.toasts.AddSuccess("Response copied to clipboard")
}

// notifySendError turns bridge send failures into toasts.
func (m *Model) notifySendError(err error) {
	switch {
	case errors.Is(err, transport.ErrBusy):
		m.toasts.AddWarning("A response is already in progress")
	case errors.Is(err, transport.ErrNotConnected):
		m.toasts.AddWarning("Not connected yet")
	default:
		m.toasts.AddError(err.Error())
	}
}

// =============================================================================
// INBOUND EVENTS
// =============================================================================

// handleEnvelope applies one server event and re-arms the envelope
// pump.
func (m Model) handleEnvelope(msg envelopeMsg) (tea.Model, tea.Cmd) {
	m.bridge.HandleEvent(msg.env, time.Now())

	if m.bridge.UserID() != "" && m.state != StateReady {
		m.greeted = true
		m.state = StateReady
		m.statusBar.SetConnection(components.ConnOnline)
	}

	m.refreshTranscript()
	if m.viewport.AutoScroll() && !m.coord.Active() {
		m.scroller.ForceToBottom()
	}

	var cmds []tea.Cmd
	m.syncSpinner(&cmds)
	cmds = append(cmds,
		waitForEnvelope(m.envelopes, m.readErrs),
		m.ensureTick(),
	)
	return m, tea.Batch(cmds...)
}

// handleRevealTick advances the reveal and scroll animations by one
// frame.
func (m Model) handleRevealTick(now time.Time) (tea.Model, tea.Cmd) {
	m.ticking = false

	if m.coord.Tick(now) {
		// Mid-stream, repaint only at coarse boundaries so words land
		// whole; the final frame after the stream ends always paints.
		repaint := true
		if m.coord.Active() {
			shown := m.coord.Session().RevealedText()
			repaint = stream.AtRenderBoundary(shown, len(shown))
		}
		if repaint {
			m.refreshTranscript()
			if m.viewport.AutoScroll() {
				m.scroller.RequestToBottom(m.cfg.ScrollDuration(), false, now)
			}
		}
	}
	m.scroller.Tick(now)

	if m.bridge.AbandonIfStalled(now, m.cfg.Watchdog()) {
		m.toasts.AddWarning("No response from server; you can send again")
	}

	var cmds []tea.Cmd
	m.syncSpinner(&cmds)
	cmds = append(cmds, m.ensureTick())
	return m, tea.Batch(cmds...)
}

// handleListing applies a directory listing to the file panel.
func (m Model) handleListing(msg listingMsg) (tea.Model, tea.Cmd) {
	m.filePanel.SetLoading(false)
	if msg.err != nil {
		m.filePanel.SetError(msg.err.Error())
		return m, nil
	}
	m.filePanel.SetEntries(msg.path, msg.listing.Files)
	return m, nil
}

// handleProcessDone reports an index rebuild and refreshes the status
// bar.
func (m Model) handleProcessDone(msg processDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.toasts.AddError("Indexing failed: " + msg.err.Error())
		return m, nil
	}
	m.toasts.AddSuccess("Indexed " + strconv.Itoa(msg.stats.ProcessedFiles) +
		" file(s), " + strconv.Itoa(msg.stats.TotalChunks) + " chunk(s)")
	return m, loadIndexStatus(m.ragAPI)
}

// =============================================================================
// HELPERS
// =============================================================================

// skipReveal shows everything buffered for the active stream at once.
// The reveal hook only ever appends past what is shown, so jumping
// ahead is safe.
func (m *Model) skipReveal() {
	s := m.coord.Session()
	if s == nil || !s.Active() {
		return
	}
	msg, err := m.transcript.Get(s.MessageID)
	if err != nil {
		return
	}
	buffered := s.BufferedText()
	shown := msg.GetDisplayContent()
	if len(buffered) > len(shown) {
		msg.AppendDelta(buffered[len(shown):])
	}
}

// syncSpinner starts the thinking spinner while a send awaits its
// first token and stops it as soon as content arrives.
func (m *Model) syncSpinner(cmds *[]tea.Cmd) {
	thinking := m.bridge.Waiting() && !m.coord.Active()
	if thinking && !m.spinner.IsActive() {
		*cmds = append(*cmds, m.spinner.Start())
	} else if !thinking && m.spinner.IsActive() {
		m.spinner.Stop()
	}
}
