// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file defines the Bubble Tea messages the chat model exchanges
// with its async commands: connection lifecycle, inbound envelopes,
// reveal ticks and HTTP API results.
package chat

import (
	"time"

	"github.com/jeranaias/alfachat-tui/internal/files"
	"github.com/jeranaias/alfachat-tui/internal/rag"
	"github.com/jeranaias/alfachat-tui/internal/transport"
)

// =============================================================================
// CONNECTION MESSAGES
// =============================================================================

// connOpenedMsg is delivered once the WebSocket dial succeeds. The
// server's connected event follows as a regular envelope.
type connOpenedMsg struct {
	client *transport.Client
}

// connFailedMsg is delivered when the dial itself fails.
type connFailedMsg struct {
	err error
}

// connClosedMsg is delivered when the read loop exits.
type connClosedMsg struct {
	err error
}

// envelopeMsg carries one inbound server event into the update loop.
// The bridge is not goroutine safe, so envelopes cross from the read
// loop goroutine to the model through this message.
type envelopeMsg struct {
	env transport.Envelope
}

// reconnectMsg fires after the reconnect backoff elapses.
type reconnectMsg struct{}

// =============================================================================
// TICK MESSAGES
// =============================================================================

// revealTickMsg drives the passive reveal and scroll loops.
type revealTickMsg time.Time

// =============================================================================
// API MESSAGES
// =============================================================================

// listingMsg carries a file panel directory listing.
type listingMsg struct {
	path    string
	listing *files.Listing
	err     error
}

// indexStatusMsg carries the document index status for the status bar.
type indexStatusMsg struct {
	stats *rag.IndexStats
	err   error
}

// processDoneMsg carries the result of a document index rebuild.
type processDoneMsg struct {
	stats *rag.ProcessStats
	err   error
}
