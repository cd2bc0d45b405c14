// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jeranaias/alfachat-tui/internal/model"
	"github.com/jeranaias/alfachat-tui/internal/stream"
)

var (
	// ErrBusy is returned when a send is attempted while a previous
	// message is still awaiting its response. The second send is
	// rejected, not queued.
	ErrBusy = errors.New("transport: a message is already in flight")

	// ErrNotConnected is returned for sends before the connected event
	// has arrived.
	ErrNotConnected = errors.New("transport: no session established")
)

// Sender writes outbound envelopes. Client satisfies it; tests use a
// fake.
type Sender interface {
	Send(env Envelope) error
}

// NotifyFunc surfaces a transient user-visible notification.
type NotifyFunc func(message string)

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge maps inbound events to transcript and coordinator calls, and
// outbound user actions to wire payloads. Out-of-protocol events
// (unknown ids, done with no active stream) are logged and ignored;
// they never crash the session.
//
// Not safe for concurrent use; the UI event loop owns it.
type Bridge struct {
	transcript *model.Transcript
	coord      *stream.Coordinator
	sender     Sender
	logger     *slog.Logger

	userID       string
	waiting      bool
	waitingSince time.Time

	onError NotifyFunc
}

// NewBridge wires a bridge to its collaborators.
func NewBridge(transcript *model.Transcript, coord *stream.Coordinator, sender Sender, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		transcript: transcript,
		coord:      coord,
		sender:     sender,
		logger:     logger,
	}
}

// OnError registers the notification hook for server error events.
func (b *Bridge) OnError(fn NotifyFunc) { b.onError = fn }

// UserID returns the session id announced by the connected event.
func (b *Bridge) UserID() string { return b.userID }

// Waiting reports whether a send is awaiting its response.
func (b *Bridge) Waiting() bool { return b.waiting }

// AbandonIfStalled clears the waiting flag when a send has gone
// unanswered past timeout without a stream ever starting. The
// coordinator's own watchdog only arms once a session exists; this
// covers the window before the first delta, where an accepted but
// never-answered send would otherwise block every later send with
// ErrBusy until the connection dropped. Returns true when the wait
// was abandoned.
func (b *Bridge) AbandonIfStalled(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 || !b.waiting || b.coord.Active() {
		return false
	}
	if now.Sub(b.waitingSince) <= timeout {
		return false
	}
	b.waiting = false
	b.logger.Warn("abandoning unanswered send", "since", b.waitingSince)
	return true
}

// =============================================================================
// INBOUND
// =============================================================================

// HandleEvent dispatches one inbound envelope. Unknown event types and
// malformed payloads are logged and dropped.
func (b *Bridge) HandleEvent(env Envelope, now time.Time) {
	switch env.Event {
	case EventConnected:
		var ev ConnectedEvent
		if !b.decode(env, &ev) {
			return
		}
		b.handleConnected(ev)
	case EventStream:
		var ev StreamEvent
		if !b.decode(env, &ev) {
			return
		}
		b.handleStream(ev, now)
	case EventMessageUpdated:
		var ev MessageUpdatedEvent
		if !b.decode(env, &ev) {
			return
		}
		b.handleMessageUpdated(ev)
	case EventError:
		var ev ErrorEvent
		if !b.decode(env, &ev) {
			return
		}
		b.handleError(ev)
	default:
		b.logger.Warn("ignoring unknown event", "event", string(env.Event))
	}
}

func (b *Bridge) decode(env Envelope, out any) bool {
	if err := json.Unmarshal(env.Data, out); err != nil {
		b.logger.Warn("ignoring malformed event payload",
			"event", string(env.Event), "error", err)
		return false
	}
	return true
}

// handleConnected starts (or restarts, on reconnect) the session:
// transcript is cleared down to pinned messages, then history is
// replayed in server order.
func (b *Bridge) handleConnected(ev ConnectedEvent) {
	b.userID = ev.UserID
	b.waiting = false
	b.coord.Cancel()
	b.transcript.Clear()

	for _, h := range ev.Messages {
		role := model.Role(h.Role)
		if !role.Valid() {
			b.logger.Warn("skipping history message with unknown role",
				"id", h.ID, "role", h.Role)
			continue
		}
		msg := model.NewMessage(role, h.Content)
		if h.ID != "" {
			msg.ID = h.ID
		}
		if h.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, h.Timestamp); err == nil {
				msg.Timestamp = ts
			}
		}
		if _, err := b.transcript.Append(msg); err != nil {
			b.logger.Warn("skipping duplicate history message", "id", msg.ID)
		}
	}

	b.logger.Info("session established",
		"user_id", ev.UserID, "history", len(ev.Messages))
}

// handleStream routes one token batch, creating the assistant message
// on the first delta for a new id.
func (b *Bridge) handleStream(ev StreamEvent, now time.Time) {
	if ev.MessageID == "" {
		b.logger.Warn("ignoring stream event without message id")
		return
	}

	if ev.Content != "" {
		// Conflicting stream: the active session wins. Checked before
		// the transcript append so the losing id never leaves an empty
		// bubble behind.
		if s := b.coord.Session(); s != nil && s.Active() && s.MessageID != ev.MessageID {
			b.logger.Warn("ignoring conflicting stream delta",
				"id", ev.MessageID, "active", s.MessageID)
		} else {
			if !b.transcript.Has(ev.MessageID) {
				if _, err := b.transcript.Append(model.NewAssistantMessage(ev.MessageID)); err != nil {
					b.logger.Warn("ignoring stream for unappendable message",
						"id", ev.MessageID, "error", err)
					return
				}
			}
			if err := b.coord.Delta(ev.MessageID, ev.Content, now); err != nil {
				b.logger.Warn("ignoring stream delta",
					"id", ev.MessageID, "error", err)
			}
		}
	}

	if ev.Done {
		b.waiting = false
		if err := b.coord.Done(ev.MessageID); err != nil {
			b.logger.Warn("ignoring stream done",
				"id", ev.MessageID, "error", err)
		}
	}
}

func (b *Bridge) handleMessageUpdated(ev MessageUpdatedEvent) {
	if err := b.transcript.ReplaceContent(ev.MessageID, ev.NewContent); err != nil {
		b.logger.Warn("ignoring update for unknown message", "id", ev.MessageID)
	}
}

// handleError fails any active stream and clears the waiting flag so
// the user can send again.
func (b *Bridge) handleError(ev ErrorEvent) {
	b.waiting = false
	b.coord.Fail(errors.New(ev.Message))
	b.logger.Error("server error", "message", ev.Message)
	if b.onError != nil {
		b.onError(ev.Message)
	}
}

// =============================================================================
// OUTBOUND
// =============================================================================

// SendOptions carries the optional parts of a send.
type SendOptions struct {
	FileContext string
	UseRAG      bool
	Regenerate  bool
}

// SendMessage submits a user message. Exactly one send may be in
// flight; a second while waiting returns ErrBusy. On success the user
// message is appended to the transcript (except for regenerations,
// which reuse existing content) and its local id is returned.
func (b *Bridge) SendMessage(text string, opts SendOptions) (string, error) {
	if b.userID == "" {
		return "", ErrNotConnected
	}
	if b.waiting {
		return "", ErrBusy
	}

	id := model.GenerateLocalID()
	if !opts.Regenerate {
		msg := model.NewUserMessage(text)
		msg.ID = id
		if _, err := b.transcript.Append(msg); err != nil {
			return "", err
		}
	}

	env, err := NewEnvelope(EventSendMessage, SendMessageEvent{
		UserID:      b.userID,
		Message:     text,
		MessageID:   id,
		FileContext: opts.FileContext,
		UseRAG:      opts.UseRAG,
		Regenerate:  opts.Regenerate,
	})
	if err != nil {
		return "", err
	}
	if err := b.sender.Send(env); err != nil {
		return "", err
	}

	b.waiting = true
	b.waitingSince = time.Now()
	return id, nil
}

// UpdateMessage edits a previously sent message locally and on the
// server. The server answers with message_updated for the regenerated
// response, not for this edit.
func (b *Bridge) UpdateMessage(id, content string) error {
	if b.userID == "" {
		return ErrNotConnected
	}
	if err := b.transcript.ReplaceContent(id, content); err != nil {
		return err
	}

	env, err := NewEnvelope(EventUpdateMessage, UpdateMessageEvent{
		MessageID:  id,
		NewContent: content,
	})
	if err != nil {
		return err
	}
	return b.sender.Send(env)
}
