// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
package model

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Alfa AI"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// RENDER STATE
// =============================================================================

// RenderState tracks whether markdown/highlighting has been applied to a
// message's displayed content.
type RenderState int

const (
	RenderPlain    RenderState = iota // raw text, no markdown applied
	RenderPending                     // partial render during streaming
	RenderRendered                    // full markdown + highlight pass done
)

// String returns the state name for logging.
func (s RenderState) String() string {
	switch s {
	case RenderPlain:
		return "plain"
	case RenderPending:
		return "rendering"
	case RenderRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a file reference carried by a message. For assistant
// messages these are RAG source documents; relevance is the retrieval
// score reported by the backend (opaque to the UI).
type Attachment struct {
	Name      string  `json:"name"`
	Size      int64   `json:"size,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a transcript.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the full text accumulated so far. For a streaming
	// assistant message this is everything received, not everything
	// revealed; the stream coordinator owns the reveal position.
	Content string `json:"content"`

	// Attachments are file references (RAG sources, user uploads).
	Attachments []Attachment `json:"attachments,omitempty"`

	// Render tracks whether markdown has been applied.
	Render RenderState `json:"-"`

	// Pinned messages survive Clear (the welcome banner on reconnect).
	Pinned bool `json:"pinned,omitempty"`

	// Edited is set once the content has been replaced by an edit.
	Edited bool `json:"edited,omitempty"`

	// Errored marks a message whose stream failed before done.
	Errored bool `json:"-"`

	// Streaming state (not persisted).
	// strings.Builder avoids quadratic allocations during streaming.
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// localIDCounter backs GenerateLocalID. Client-assigned user message ids
// follow the msg-<n> pattern; server-assigned ids are uuids.
var localIDCounter atomic.Int64

// GenerateLocalID returns the next locally generated message id.
func GenerateLocalID() string {
	return "msg-" + util.IntToString(int(localIDCounter.Add(1)))
}

// GenerateServerID returns a server-style uuid message id.
func GenerateServerID() string {
	return uuid.NewString()
}

// NewMessage creates a new message with a generated local ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        GenerateLocalID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a streaming assistant message for the given
// server-assigned id.
func NewAssistantMessage(id string) *Message {
	if id == "" {
		id = GenerateServerID()
	}
	return &Message{
		ID:          id,
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewWelcomeMessage creates the pinned welcome banner.
func NewWelcomeMessage(content string) *Message {
	msg := NewMessage(RoleSystem, content)
	msg.Pinned = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendDelta appends a streamed text fragment to a streaming message.
func (m *Message) AppendDelta(delta string) {
	if m.IsStreaming {
		m.streamContent.WriteString(delta)
		m.Render = RenderPending
	}
}

// FinalizeStream completes streaming: the accumulated text becomes the
// message content and the message is eligible for the full render pass.
func (m *Message) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
	m.Render = RenderPlain
}

// FailStream completes streaming with an error. Whatever was received is
// kept; the message is flagged so the UI can show the error state.
func (m *Message) FailStream() {
	if m.IsStreaming {
		m.Content = m.streamContent.String()
		m.streamContent.Reset()
		m.IsStreaming = false
	}
	m.Errored = true
	m.Render = RenderPlain
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// ReplaceContent replaces the message content wholesale (edit path) and
// resets the render state so the next render pass re-applies markdown.
func (m *Message) ReplaceContent(content string) {
	m.Content = content
	m.Edited = true
	m.Render = RenderPlain
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}
