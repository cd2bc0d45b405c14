// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"testing"
	"time"
)

// fakeTranscript satisfies the Transcript interface with a settable
// membership set, so liveness checks run without the real store.
type fakeTranscript struct {
	ids map[string]bool
}

func newFakeTranscript(ids ...string) *fakeTranscript {
	ft := &fakeTranscript{ids: make(map[string]bool)}
	for _, id := range ids {
		ft.ids[id] = true
	}
	return ft
}

func (f *fakeTranscript) Has(id string) bool { return f.ids[id] }

// drain runs ticks until the coordinator reports nothing to do, with a
// cap so a broken loop fails the test instead of hanging it.
func drain(t *testing.T, c *Coordinator, now time.Time) time.Time {
	t.Helper()
	for i := 0; i < 10000; i++ {
		now = now.Add(DefaultTickInterval)
		if !c.Tick(now) && (c.Session() == nil || c.Session().caughtUp()) {
			return now
		}
	}
	t.Fatal("reveal loop did not terminate within tick budget")
	return now
}

// =============================================================================
// STATE MACHINE TESTS
// =============================================================================

func TestCoordinatorStreamConvergence(t *testing.T) {
	// For any deltas d1..dn followed by done, the final content equals
	// concat(d1..dn) regardless of tick timing.
	cases := [][]string{
		{"Hi", " there"},
		{"H", "i", " ", "t", "h", "e", "r", "e"},
		{"Hello **wor", "ld** and `code`"},
		{"one big delta with\nnewlines and ```go\ncode\n```"},
	}

	for _, deltas := range cases {
		ft := newFakeTranscript("m1")
		c := New(ft)

		var gotContent string
		c.OnDone(func(id, content string, err error) {
			gotContent = content
		})

		now := time.Now()
		want := ""
		for i, d := range deltas {
			if err := c.Delta("m1", d, now); err != nil {
				t.Fatalf("Delta failed: %v", err)
			}
			want += d
			// Interleave a few ticks between deltas to vary timing.
			for j := 0; j < i; j++ {
				now = now.Add(DefaultTickInterval)
				c.Tick(now)
			}
		}

		if err := c.Done("m1"); err != nil {
			t.Fatalf("Done failed: %v", err)
		}
		if gotContent != want {
			t.Errorf("final content %q, want %q", gotContent, want)
		}
		if c.Active() {
			t.Error("coordinator still active after done")
		}
	}
}

func TestCoordinatorMonotonicReveal(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft)

	now := time.Now()
	c.Delta("m1", "abcdefghij", now)

	prev := 0
	for i := 0; i < 20; i++ {
		now = now.Add(DefaultTickInterval)
		c.Tick(now)
		s := c.Session()
		if s == nil {
			break
		}
		if s.Revealed() < prev {
			t.Fatalf("revealed went backwards: %d -> %d", prev, s.Revealed())
		}
		prev = s.Revealed()
	}

	if prev != 10 {
		t.Errorf("expected full reveal of 10 runes, got %d", prev)
	}
}

func TestCoordinatorRevealIsRuneSafe(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft)

	var partials []string
	c.OnReveal(func(s *Session) {
		partials = append(partials, s.RevealedText())
	})

	now := time.Now()
	c.Delta("m1", "héllö", now)
	drain(t, c, now)

	for _, p := range partials {
		for _, r := range p {
			if r == '�' {
				t.Fatalf("partial reveal produced a broken rune in %q", p)
			}
		}
	}
	if len(partials) == 0 || partials[len(partials)-1] != "héllö" {
		t.Errorf("final partial should be the whole text, got %v", partials)
	}
}

func TestCoordinatorConflict(t *testing.T) {
	ft := newFakeTranscript("m1", "m2")
	c := New(ft)

	now := time.Now()
	c.Delta("m1", "first", now)

	err := c.Delta("m2", "intruder", now)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The first session's buffer is never corrupted.
	if got := c.Session().BufferedText(); got != "first" {
		t.Errorf("first session buffer corrupted: %q", got)
	}
	if c.Session().MessageID != "m1" {
		t.Errorf("active session id changed to %q", c.Session().MessageID)
	}
}

func TestCoordinatorDoneWithoutSession(t *testing.T) {
	c := New(newFakeTranscript())
	if err := c.Done("ghost"); !errors.Is(err, ErrNoActiveStream) {
		t.Errorf("expected ErrNoActiveStream, got %v", err)
	}
	if err := c.Fail(errors.New("x")); !errors.Is(err, ErrNoActiveStream) {
		t.Errorf("expected ErrNoActiveStream, got %v", err)
	}
}

func TestCoordinatorDoneShortCircuitsReveal(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft)

	var done bool
	var content string
	c.OnDone(func(id, got string, err error) {
		done = true
		content = got
	})

	now := time.Now()
	c.Delta("m1", "a long response that has not been revealed at all", now)

	// done arrives before any tick: remaining delay is skipped entirely.
	if err := c.Done("m1"); err != nil {
		t.Fatalf("Done failed: %v", err)
	}
	if !done {
		t.Fatal("completion hook did not fire")
	}
	if content != "a long response that has not been revealed at all" {
		t.Errorf("short-circuit flush lost content: %q", content)
	}
}

func TestCoordinatorFailKeepsRevealedText(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft)

	var gotErr error
	var content string
	c.OnDone(func(id, got string, err error) {
		content = got
		gotErr = err
	})

	now := time.Now()
	c.Delta("m1", "partial answer", now)
	streamErr := errors.New("connection reset")
	if err := c.Fail(streamErr); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}

	if !errors.Is(gotErr, streamErr) {
		t.Errorf("completion hook error: got %v, want %v", gotErr, streamErr)
	}
	if content != "partial answer" {
		t.Errorf("failed stream content: %q", content)
	}
}

// =============================================================================
// LIVENESS AND WATCHDOG
// =============================================================================

func TestCoordinatorStopsWhenMessageRemoved(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft)

	now := time.Now()
	c.Delta("m1", "doomed", now)
	c.Tick(now.Add(DefaultTickInterval))

	// Regenerate removed the message between ticks.
	delete(ft.ids, "m1")

	if c.Tick(now.Add(2 * DefaultTickInterval)) {
		t.Error("tick kept scheduling after the owning message was removed")
	}
	if c.Session() != nil {
		t.Error("session leaked after liveness cancellation")
	}
}

func TestCoordinatorWatchdog(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft, WithIdleTimeout(time.Second))

	var gotErr error
	c.OnDone(func(id, content string, err error) { gotErr = err })

	now := time.Now()
	c.Delta("m1", "stalls here", now)
	drain(t, c, now)

	// Quiet past the idle deadline: watchdog fails the stream.
	c.Tick(now.Add(2 * time.Second))

	if !errors.Is(gotErr, ErrStalled) {
		t.Errorf("expected ErrStalled from watchdog, got %v", gotErr)
	}
	if c.Active() {
		t.Error("stalled stream still active")
	}
}

func TestCoordinatorDeltaResetsWatchdog(t *testing.T) {
	ft := newFakeTranscript("m1")
	c := New(ft, WithIdleTimeout(time.Second))

	var failed bool
	c.OnDone(func(id, content string, err error) {
		if err != nil {
			failed = true
		}
	})

	now := time.Now()
	c.Delta("m1", "a", now)
	now = now.Add(900 * time.Millisecond)
	c.Delta("m1", "b", now) // fresh delta pushes the deadline out
	c.Tick(now.Add(900 * time.Millisecond))

	if failed {
		t.Error("watchdog fired despite recent delta")
	}
}

// =============================================================================
// MARKDOWN GATE
// =============================================================================

func TestShouldRenderMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain text", "just some words", false},
		{"unclosed bold", "this is **not finish", false},
		{"closed bold", "this is **done** now", true},
		{"closed fence", "```go\nfmt.Println()\n```", true},
		{"open fence with body", "```python\nimport os\nprint(1)", true},
		{"bare fence start", "```", false},
		{"heading", "# Title\nbody", true},
		{"list item", "* first thing", true},
		{"numbered item", "1. first thing", true},
		{"complete link", "see [docs](https://example.com)", true},
		{"incomplete link", "see [docs](https://exa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRenderMarkdown(tt.content); got != tt.want {
				t.Errorf("ShouldRenderMarkdown(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestShouldRenderMarkdownIsDeterministic(t *testing.T) {
	// Regexp state must not leak between calls.
	content := "```go\nx := 1\n```"
	for i := 0; i < 5; i++ {
		if !ShouldRenderMarkdown(content) {
			t.Fatalf("call %d returned false for content that matched before", i)
		}
	}
}

func TestAtRenderBoundary(t *testing.T) {
	if AtRenderBoundary("", 0) {
		t.Error("zero reveal is never a boundary")
	}
	if !AtRenderBoundary("abcdefghij", 10) {
		t.Error("multiple of 10 should be a boundary")
	}
	if !AtRenderBoundary("word ", 5) {
		t.Error("trailing space should be a boundary")
	}
	if !AtRenderBoundary("line\n", 5) {
		t.Error("trailing newline should be a boundary")
	}
	if AtRenderBoundary("abc", 3) {
		t.Error("mid-word non-multiple should not be a boundary")
	}
}
