// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"strings"
	"sync"

	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// RESPONDERS
// =============================================================================

// Responder produces the assistant reply for one user prompt. The
// development server has no model of its own; a responder stands in
// for it: the echo responder interactively, scripted responders in
// tests.
type Responder interface {
	Respond(ctx context.Context, prompt string, history []StoredMessage) (string, error)
}

// EchoResponder answers with a short markdown reflection of the
// prompt. Useful for exercising the full streaming and rendering
// pipeline without a model.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(_ context.Context, prompt string, history []StoredMessage) (string, error) {
	var b strings.Builder
	b.WriteString("You said:\n\n> ")
	b.WriteString(strings.ReplaceAll(strings.TrimSpace(prompt), "\n", "\n> "))
	b.WriteString("\n\nThis is a development backend; responses are echoes, not a model.")
	if n := len(history); n > 0 {
		b.WriteString("\n\nThe conversation has ")
		b.WriteString(util.IntToString(n))
		b.WriteString(" earlier message(s).")
	}
	return b.String(), nil
}

// ScriptedResponder replays a fixed sequence of responses, then falls
// back to echoing. Tests use it to drive exact stream content.
type ScriptedResponder struct {
	mu        sync.Mutex
	responses []string
	fallback  EchoResponder
}

// NewScriptedResponder queues the given responses in order.
func NewScriptedResponder(responses ...string) *ScriptedResponder {
	return &ScriptedResponder{responses: responses}
}

// Respond pops the next scripted response.
func (s *ScriptedResponder) Respond(ctx context.Context, prompt string, history []StoredMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return s.fallback.Respond(ctx, prompt, history)
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}
