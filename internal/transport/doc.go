// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport connects the chat UI to its backend.
//
// The wire protocol is JSON envelopes over a WebSocket: the server
// pushes connected, stream, message_updated, and error events; the
// client sends send_message and update_message. The Bridge maps those
// events onto the transcript and the streaming coordinator, and
// enforces the single-flight send rule: one message may await its
// response at a time, a second is rejected rather than queued.
//
// Out-of-protocol traffic (unknown events, unknown message ids, done
// with no active stream) is logged and ignored. It never tears down
// the session.
//
// # Key Types
//
//   - Client: gorilla/websocket connection with a serialized writer
//   - Bridge: inbound event dispatch plus outbound send/update
//   - Envelope: the event-name + payload framing used in both directions
package transport
