// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file holds the async commands: dialing the WebSocket, pumping
// inbound envelopes into the update loop, the reveal tick, and the
// file/RAG HTTP calls.
package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/rag"
	"github.com/jeranaias/alfachat-tui/internal/transport"
)

// reconnectDelay is the pause before redialing a dropped connection.
const reconnectDelay = 3 * time.Second

// =============================================================================
// CONNECTION COMMANDS
// =============================================================================

// connect dials the chat endpoint and, on success, starts the read
// loop goroutine. The read loop only forwards envelopes onto the
// model's channel; all state changes happen in Update.
func (m Model) connect() tea.Cmd {
	url := m.cfg.WSURL()
	logger := m.logger
	envelopes := m.envelopes
	readErrs := m.readErrs
	return func() tea.Msg {
		client, err := transport.Dial(context.Background(), url, logger)
		if err != nil {
			return connFailedMsg{err: err}
		}
		go func() {
			readErrs <- client.ReadLoop(context.Background(), func(env transport.Envelope) {
				envelopes <- env
			})
		}()
		return connOpenedMsg{client: client}
	}
}

// waitForEnvelope blocks until the read loop produces an envelope or
// exits. Re-issued after every envelopeMsg.
func waitForEnvelope(envelopes <-chan transport.Envelope, readErrs <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case env := <-envelopes:
			return envelopeMsg{env: env}
		case err := <-readErrs:
			return connClosedMsg{err: err}
		}
	}
}

// scheduleReconnect waits out the backoff before the next dial.
func scheduleReconnect() tea.Cmd {
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// =============================================================================
// TICK COMMANDS
// =============================================================================

// revealTickCmd schedules the next reveal tick.
func revealTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return revealTickMsg(t)
	})
}

// =============================================================================
// API COMMANDS
// =============================================================================

// loadListing fetches a directory listing for the file panel.
func loadListing(api *files.Client, path string) tea.Cmd {
	return func() tea.Msg {
		listing, err := api.List(context.Background(), path)
		return listingMsg{path: path, listing: listing, err: err}
	}
}

// loadIndexStatus fetches the document index status.
func loadIndexStatus(api *rag.Client) tea.Cmd {
	return func() tea.Msg {
		stats, err := api.Stats(context.Background())
		return indexStatusMsg{stats: stats, err: err}
	}
}

// processIndex rebuilds the document index from the workspace.
func processIndex(api *rag.Client) tea.Cmd {
	return func() tea.Msg {
		stats, err := api.Process(context.Background())
		return processDoneMsg{stats: stats, err: err}
	}
}
