// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
)

// =============================================================================
// WIRE PROTOCOL
// =============================================================================

// EventType names one event on the chat channel.
type EventType string

// Inbound events (server → client).
const (
	EventConnected      EventType = "connected"
	EventStream         EventType = "stream"
	EventMessageUpdated EventType = "message_updated"
	EventError          EventType = "error"
)

// Outbound events (client → server).
const (
	EventSendMessage   EventType = "send_message"
	EventUpdateMessage EventType = "update_message"
)

// Envelope is the framing for every event in either direction: the
// event name plus its undecoded payload.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals a payload into an envelope.
func NewEnvelope(event EventType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the payload into out.
func (e Envelope) Decode(out any) error {
	return json.Unmarshal(e.Data, out)
}

// =============================================================================
// INBOUND PAYLOADS
// =============================================================================

// HistoryMessage is one stored message replayed in the connected event.
type HistoryMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ConnectedEvent announces the session and replays stored history.
type ConnectedEvent struct {
	UserID   string           `json:"user_id"`
	Messages []HistoryMessage `json:"messages"`
}

// StreamEvent carries one token batch of an assistant response, or its
// completion marker. Content and Done are mutually exclusive in
// practice but a final event may carry both.
type StreamEvent struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

// MessageUpdatedEvent replaces the content of a stored message.
type MessageUpdatedEvent struct {
	MessageID  string `json:"message_id"`
	NewContent string `json:"new_content"`
}

// ErrorEvent surfaces a server-side failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

// =============================================================================
// OUTBOUND PAYLOADS
// =============================================================================

// SendMessageEvent submits a user message for a model response.
type SendMessageEvent struct {
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	MessageID   string `json:"message_id"`
	FileContext string `json:"file_context,omitempty"`
	UseRAG      bool   `json:"use_rag,omitempty"`
	Regenerate  bool   `json:"regenerate,omitempty"`
}

// UpdateMessageEvent edits a previously sent message in place.
type UpdateMessageEvent struct {
	MessageID  string `json:"message_id"`
	NewContent string `json:"new_content"`
}
