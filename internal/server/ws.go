// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jeranaias/alfachat-tui/internal/transport"
)

// =============================================================================
// WEBSOCKET SESSIONS
// =============================================================================

const streamChunkRunes = 24

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The server only binds loopback in development; origin checks
	// would reject the TUI client, which sends none.
	CheckOrigin: func(*http.Request) bool { return true },
}

// session is one connected websocket client.
type session struct {
	srv    *Server
	conn   *websocket.Conn
	userID string

	writeMu sync.Mutex
	limiter *rate.Limiter

	streamMu  sync.Mutex
	streaming bool
}

// handleWS upgrades the connection and runs the session loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// A returning client resumes its history by presenting its id.
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = uuid.New().String()
	}

	sess := &session{
		srv:     s,
		conn:    conn,
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(float64(s.ratePerMinute)/60.0), s.ratePerMinute),
	}

	if err := sess.sendConnected(); err != nil {
		s.logger.Warn("connected replay failed", "user", userID, "error", err)
		return
	}
	s.logger.Info("client connected", "user", userID)

	sess.readLoop(r.Context())
	s.logger.Info("client disconnected", "user", userID)
}

func (sess *session) sendConnected() error {
	var history []transport.HistoryMessage
	stored, err := sess.srv.history.List(sess.userID)
	if err != nil {
		sess.srv.logger.Warn("history load failed", "user", sess.userID, "error", err)
	}
	for _, m := range stored {
		history = append(history, transport.HistoryMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Created.UTC().Format(time.RFC3339),
		})
	}
	return sess.send(transport.EventConnected, transport.ConnectedEvent{
		UserID:   sess.userID,
		Messages: history,
	})
}

func (sess *session) readLoop(ctx context.Context) {
	for {
		var env transport.Envelope
		if err := sess.conn.ReadJSON(&env); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				sess.srv.logger.Warn("malformed frame", "user", sess.userID, "error", err)
				continue
			}
			if _, ok := err.(*json.UnmarshalTypeError); ok {
				sess.srv.logger.Warn("malformed frame", "user", sess.userID, "error", err)
				continue
			}
			return
		}

		switch env.Event {
		case transport.EventSendMessage:
			var ev transport.SendMessageEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				sess.sendError("Invalid send_message payload")
				continue
			}
			sess.handleSend(ctx, ev)
		case transport.EventUpdateMessage:
			var ev transport.UpdateMessageEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				sess.sendError("Invalid update_message payload")
				continue
			}
			sess.handleUpdate(ctx, ev)
		default:
			sess.srv.logger.Warn("unknown event", "user", sess.userID, "event", env.Event)
		}
	}
}

// handleSend validates and persists the prompt, then streams a reply
// in the background so the read loop keeps servicing the connection.
func (sess *session) handleSend(ctx context.Context, ev transport.SendMessageEvent) {
	if ev.Message == "" {
		sess.sendError("Empty message")
		return
	}
	if !sess.limiter.Allow() {
		sess.sendError("Rate limit exceeded. Please slow down.")
		return
	}

	sess.streamMu.Lock()
	if sess.streaming {
		sess.streamMu.Unlock()
		sess.sendError("A response is already in progress")
		return
	}
	sess.streaming = true
	sess.streamMu.Unlock()

	if !ev.Regenerate {
		id := ev.MessageID
		if id == "" {
			id = uuid.New().String()
		}
		if err := sess.srv.history.Append(StoredMessage{
			ID:      id,
			UserID:  sess.userID,
			Role:    "user",
			Content: ev.Message,
			Created: time.Now(),
		}); err != nil {
			sess.srv.logger.Warn("persist failed", "user", sess.userID, "error", err)
		}
	}
	sess.srv.recordMessage(ctx)

	go func() {
		defer func() {
			sess.streamMu.Lock()
			sess.streaming = false
			sess.streamMu.Unlock()
		}()
		sess.respond(ctx, ev)
	}()
}

// respond generates and streams one assistant reply.
func (sess *session) respond(ctx context.Context, ev transport.SendMessageEvent) {
	history, err := sess.srv.history.List(sess.userID)
	if err != nil {
		sess.srv.logger.Warn("history load failed", "user", sess.userID, "error", err)
	}

	prompt := ev.Message
	if ev.UseRAG && sess.srv.index != nil {
		if chunks, err := sess.srv.index.Search(ctx, ev.Message, 4); err == nil && len(chunks) > 0 {
			var b []byte
			b = append(b, "Context:\n"...)
			for _, c := range chunks {
				b = append(b, c...)
				b = append(b, "\n---\n"...)
			}
			b = append(b, "\nQuestion: "...)
			b = append(b, ev.Message...)
			prompt = string(b)
		}
	}
	if ev.FileContext != "" {
		prompt = "File context: " + ev.FileContext + "\n\n" + prompt
	}

	reply, err := sess.srv.responder.Respond(ctx, prompt, history)
	if err != nil {
		sess.srv.logger.Warn("responder failed", "user", sess.userID, "error", err)
		sess.sendError("Failed to generate response")
		return
	}

	messageID := uuid.New().String()
	if err := sess.streamReply(messageID, reply); err != nil {
		return
	}

	// Persist before the done marker so an immediate reconnect
	// replays the full exchange.
	if err := sess.srv.history.Append(StoredMessage{
		ID:      messageID,
		UserID:  sess.userID,
		Role:    "assistant",
		Content: reply,
		Created: time.Now(),
	}); err != nil {
		sess.srv.logger.Warn("persist failed", "user", sess.userID, "error", err)
	}

	if err := sess.send(transport.EventStream, transport.StreamEvent{
		MessageID: messageID,
		Done:      true,
	}); err != nil {
		sess.srv.logger.Warn("send failed", "user", sess.userID, "error", err)
	}
}

// streamReply emits the reply in rune chunks; the caller sends the
// completion marker.
func (sess *session) streamReply(messageID, reply string) error {
	runes := []rune(reply)
	for start := 0; start < len(runes); start += streamChunkRunes {
		end := start + streamChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		if err := sess.send(transport.EventStream, transport.StreamEvent{
			MessageID: messageID,
			Content:   string(runes[start:end]),
		}); err != nil {
			return err
		}
		if sess.srv.streamDelay > 0 {
			time.Sleep(sess.srv.streamDelay)
		}
	}
	return nil
}

// handleUpdate edits a stored user message and regenerates the
// assistant response that followed it.
func (sess *session) handleUpdate(ctx context.Context, ev transport.UpdateMessageEvent) {
	if ev.MessageID == "" || ev.NewContent == "" {
		sess.sendError("Invalid update_message payload")
		return
	}
	if err := sess.srv.history.ReplaceContent(ev.MessageID, ev.NewContent); err != nil {
		sess.sendError("Message not found")
		return
	}

	next, err := sess.srv.history.NextAssistantAfter(ev.MessageID)
	if err != nil {
		// Nothing to regenerate; the edit itself still stands.
		return
	}

	history, err := sess.srv.history.List(sess.userID)
	if err != nil {
		sess.srv.logger.Warn("history load failed", "user", sess.userID, "error", err)
	}
	reply, err := sess.srv.responder.Respond(ctx, ev.NewContent, history)
	if err != nil {
		sess.sendError("Failed to regenerate response")
		return
	}

	if err := sess.srv.history.ReplaceContent(next.ID, reply); err != nil {
		sess.srv.logger.Warn("persist failed", "user", sess.userID, "error", err)
	}
	if err := sess.send(transport.EventMessageUpdated, transport.MessageUpdatedEvent{
		MessageID:  next.ID,
		NewContent: reply,
	}); err != nil {
		sess.srv.logger.Warn("send failed", "user", sess.userID, "error", err)
	}
}

// send serializes one event; safe for concurrent use.
func (sess *session) send(event transport.EventType, payload any) error {
	env, err := transport.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(env)
}

func (sess *session) sendError(msg string) {
	if err := sess.send(transport.EventError, transport.ErrorEvent{Message: msg}); err != nil {
		sess.srv.logger.Warn("send failed", "user", sess.userID, "error", err)
	}
}
