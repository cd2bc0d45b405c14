// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package scroll

import (
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultDebounce is the window inside which repeat scroll requests
	// are dropped rather than animated.
	DefaultDebounce = 100 * time.Millisecond

	// DefaultEpsilon is the distance (in lines) from the true bottom
	// below which a scroll request is treated as already satisfied.
	// Avoids micro-adjustment loops from layout jitter.
	DefaultEpsilon = 5

	// DefaultDuration is the animation length used when a request gives
	// no hint.
	DefaultDuration = 300 * time.Millisecond
)

// =============================================================================
// SURFACE
// =============================================================================

// Surface is the scrollable viewport the controller drives. The
// bubbletea viewport satisfies it through a thin adapter; tests use a
// fake.
type Surface interface {
	// Offset is the current scroll position in lines from the top.
	Offset() int
	// SetOffset moves the scroll position.
	SetOffset(offset int)
	// Height is the visible viewport height in lines.
	Height() int
	// ContentHeight is the total content height in lines.
	ContentHeight() int
}

// =============================================================================
// CONTROLLER
// =============================================================================

// request is one pending scroll-to-bottom. At most one is queued while
// an animation runs; a newer request replaces it.
type request struct {
	duration time.Duration
	force    bool
}

// Controller keeps a Surface pinned to the newest content. Requests
// arriving during an animation coalesce into a single queued request;
// requests inside the debounce window are dropped. All motion happens
// in Tick, so tests drive the controller without real timers.
//
// Not safe for concurrent use; the UI event loop owns it.
type Controller struct {
	surface  Surface
	debounce time.Duration
	epsilon  int

	animating   bool
	queued      *request
	startOffset int
	target      int
	duration    time.Duration
	startedAt   time.Time
	lastStart   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the drop window for repeat requests.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithEpsilon overrides the already-at-bottom threshold in lines.
func WithEpsilon(lines int) Option {
	return func(c *Controller) { c.epsilon = lines }
}

// NewController creates a controller for the given surface.
func NewController(surface Surface, opts ...Option) *Controller {
	c := &Controller{
		surface:  surface,
		debounce: DefaultDebounce,
		epsilon:  DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAnimating reports whether a scroll animation is in progress.
func (c *Controller) IsAnimating() bool { return c.animating }

// HasQueued reports whether a request is waiting behind the current
// animation.
func (c *Controller) HasQueued() bool { return c.queued != nil }

// AtBottom reports whether the surface is within epsilon of the true
// bottom.
func (c *Controller) AtBottom() bool {
	return c.bottom()-c.surface.Offset() <= c.epsilon
}

// bottom is the offset that shows the newest content.
func (c *Controller) bottom() int {
	b := c.surface.ContentHeight() - c.surface.Height()
	if b < 0 {
		b = 0
	}
	return b
}

// RequestToBottom asks for an eased scroll to the bottom. While a prior
// animation runs, non-forced requests coalesce into a single queued
// request (last writer wins). Non-forced requests inside the debounce
// window of the previous start are dropped. A request within epsilon of
// the bottom is already satisfied and does nothing.
func (c *Controller) RequestToBottom(duration time.Duration, force bool, now time.Time) {
	if duration <= 0 {
		duration = DefaultDuration
	}

	if c.animating && !force {
		c.queued = &request{duration: duration, force: force}
		return
	}
	if !force && !c.lastStart.IsZero() && now.Sub(c.lastStart) < c.debounce {
		return
	}
	c.start(duration, now)
}

// ForceToBottom snaps to the bottom with no animation. Always wins:
// any running animation and queued request are discarded.
func (c *Controller) ForceToBottom() {
	c.animating = false
	c.queued = nil
	c.surface.SetOffset(c.bottom())
}

// start begins (or skips, when within epsilon) a single animation.
func (c *Controller) start(duration time.Duration, now time.Time) {
	c.lastStart = now

	target := c.bottom()
	if target-c.surface.Offset() <= c.epsilon {
		c.animating = false
		return
	}

	c.animating = true
	c.startOffset = c.surface.Offset()
	c.target = target
	c.duration = duration
	c.startedAt = now
}

// Tick advances the animation to the given instant. Returns true while
// an animation remains active, so the caller knows to keep ticking.
func (c *Controller) Tick(now time.Time) bool {
	if !c.animating {
		return false
	}

	t := float64(now.Sub(c.startedAt)) / float64(c.duration)
	if t >= 1 {
		c.surface.SetOffset(c.target)
		c.animating = false
		if q := c.queued; q != nil {
			c.queued = nil
			c.start(q.duration, now)
		}
		return c.animating
	}
	if t < 0 {
		t = 0
	}

	eased := easeOutQuart(t)
	offset := c.startOffset + int(float64(c.target-c.startOffset)*eased)
	c.surface.SetOffset(offset)
	return true
}

// easeOutQuart decelerates toward the end of the animation.
func easeOutQuart(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u*u
}
