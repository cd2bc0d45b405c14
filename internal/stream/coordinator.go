// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the streaming coordinator: it accepts
// incremental text deltas for one in-flight assistant message, buffers
// them, and drives a timed character reveal toward the fully buffered
// content.
package stream

import (
	"errors"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConflict is returned when a delta arrives for a different
	// message while a stream is active. At most one concurrent assistant
	// stream is supported; the server is single-flight per user, so a
	// conflicting stream is a protocol violation to log and ignore.
	ErrConflict = errors.New("stream conflict: another stream is active")

	// ErrNoActiveStream is returned for done/fail with no session.
	ErrNoActiveStream = errors.New("no active stream")

	// ErrStalled is reported by the watchdog when an active stream stops
	// receiving deltas without a done signal.
	ErrStalled = errors.New("stream stalled: no data before idle deadline")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultTickInterval is the reveal cadence: one character per tick.
	DefaultTickInterval = 30 * time.Millisecond

	// DefaultIdleTimeout is the watchdog deadline for a silent stream.
	// The wire protocol has no timeout of its own; without this a stream
	// that never sends done would stay active forever.
	DefaultIdleTimeout = 60 * time.Second
)

// Transcript is the slice of the message store the coordinator needs.
// Satisfied by *model.Transcript.
type Transcript interface {
	Has(id string) bool
}

// =============================================================================
// SESSION
// =============================================================================

// Session holds the reveal state for one in-flight assistant message.
//
// Invariant: 0 <= revealed <= len(pending), and revealed never decreases
// for the lifetime of the session.
type Session struct {
	MessageID string

	// pending is everything received from the transport; revealed is how
	// many runes of it have been shown. Runes, not bytes, so multi-byte
	// characters are never revealed half-way.
	pending  []rune
	revealed int

	active      bool
	lastEventAt time.Time
}

// Revealed returns the number of revealed runes.
func (s *Session) Revealed() int { return s.revealed }

// Pending returns the number of buffered runes.
func (s *Session) Pending() int { return len(s.pending) }

// RevealedText returns the revealed prefix of the buffered content.
func (s *Session) RevealedText() string {
	return string(s.pending[:s.revealed])
}

// BufferedText returns everything received so far.
func (s *Session) BufferedText() string {
	return string(s.pending)
}

// Active reports whether the stream is still receiving.
func (s *Session) Active() bool { return s.active }

// caughtUp reports whether the reveal has consumed the whole buffer.
func (s *Session) caughtUp() bool { return s.revealed >= len(s.pending) }

// =============================================================================
// COORDINATOR
// =============================================================================

// DoneFunc is called when a session finishes: the full buffered text and,
// for a failed stream, the error that ended it.
type DoneFunc func(messageID, content string, streamErr error)

// RevealFunc is called whenever the revealed prefix grows, with the
// session so the caller can re-render the partial text.
type RevealFunc func(s *Session)

// Coordinator owns the single stream session and its reveal loop. It is
// passive: the UI event loop drives it by calling Tick at a fixed
// cadence (a Bubble Tea tick command in production, a bare loop in
// tests), so no real timers are needed to exercise it.
type Coordinator struct {
	transcript Transcript

	session *Session

	// hooks
	onReveal RevealFunc
	onDone   DoneFunc

	idleTimeout  time.Duration
	runesPerTick int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIdleTimeout overrides the watchdog deadline. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.idleTimeout = d }
}

// WithRunesPerTick overrides how many characters each tick reveals.
func WithRunesPerTick(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.runesPerTick = n
		}
	}
}

// New creates a coordinator bound to a transcript.
func New(transcript Transcript, opts ...Option) *Coordinator {
	c := &Coordinator{
		transcript:   transcript,
		idleTimeout:  DefaultIdleTimeout,
		runesPerTick: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnReveal registers the partial-render hook.
func (c *Coordinator) OnReveal(fn RevealFunc) { c.onReveal = fn }

// OnDone registers the completion hook.
func (c *Coordinator) OnDone(fn DoneFunc) { c.onDone = fn }

// Active reports whether a stream session is in flight.
func (c *Coordinator) Active() bool {
	return c.session != nil && c.session.active
}

// Session returns the current session, nil when idle.
func (c *Coordinator) Session() *Session {
	return c.session
}

// =============================================================================
// EVENT APPLICATION
// =============================================================================

// Delta applies an incremental text fragment.
//
// Idle + unknown id: a new session starts and the reveal loop begins.
// Streaming + same id: the fragment is buffered; the loop keeps going.
// Streaming + other id: ErrConflict; the fragment is dropped and the
// first session's buffer is untouched.
func (c *Coordinator) Delta(messageID, text string, now time.Time) error {
	if c.session != nil && c.session.active {
		if c.session.MessageID != messageID {
			return ErrConflict
		}
		c.session.pending = append(c.session.pending, []rune(text)...)
		c.session.lastEventAt = now
		return nil
	}

	c.session = &Session{
		MessageID:   messageID,
		pending:     []rune(text),
		active:      true,
		lastEventAt: now,
	}
	return nil
}

// Done finishes the stream for the given message: any unrevealed text is
// flushed immediately (no further per-character delay) and the completion
// hook fires exactly once with the full buffered content.
func (c *Coordinator) Done(messageID string) error {
	s := c.session
	if s == nil || !s.active {
		return ErrNoActiveStream
	}
	if s.MessageID != messageID {
		return ErrConflict
	}

	s.revealed = len(s.pending)
	s.active = false
	c.finish(s, nil)
	return nil
}

// Fail ends the active stream with an error. The completion hook
// receives the full buffer along with the error, so text that arrived
// before the failure is kept rather than discarded.
func (c *Coordinator) Fail(streamErr error) error {
	s := c.session
	if s == nil || !s.active {
		return ErrNoActiveStream
	}

	s.active = false
	c.finish(s, streamErr)
	return nil
}

// Cancel silently drops the session (regenerate path: the owning message
// is being replaced, so no completion hook fires).
func (c *Coordinator) Cancel() {
	c.session = nil
}

// finish invokes the completion hook and clears the session.
func (c *Coordinator) finish(s *Session, streamErr error) {
	if c.onDone != nil {
		c.onDone(s.MessageID, string(s.pending), streamErr)
	}
	c.session = nil
}

// =============================================================================
// REVEAL LOOP
// =============================================================================

// Tick advances the reveal by one step. It returns true when the visible
// text changed and another tick should be scheduled, false when the
// coordinator has nothing further to reveal right now.
//
// The reveal is monotonic and terminates within O(buffered length) ticks
// after the last delta: each tick either reveals at least one rune or
// reports false.
func (c *Coordinator) Tick(now time.Time) bool {
	s := c.session
	if s == nil {
		return false
	}

	// Liveness: the owning message may have been removed or superseded
	// between ticks. Stop scheduling rather than writing into a message
	// that no longer exists.
	if c.transcript != nil && !c.transcript.Has(s.MessageID) {
		c.session = nil
		return false
	}

	// Watchdog: an active stream that has gone silent past the idle
	// deadline is failed rather than left hanging.
	if s.active && c.idleTimeout > 0 && now.Sub(s.lastEventAt) > c.idleTimeout {
		s.active = false
		c.finish(s, ErrStalled)
		return false
	}

	if s.caughtUp() {
		return s.active // keep ticking while the stream may still deliver
	}

	s.revealed += c.runesPerTick
	if s.revealed > len(s.pending) {
		s.revealed = len(s.pending)
	}

	if c.onReveal != nil {
		c.onReveal(s)
	}
	return true
}
