// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"regexp"
	"testing"
)

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscriptAppendAndGet(t *testing.T) {
	tr := NewTranscript()

	msg := NewUserMessage("hello")
	id, err := tr.Append(msg)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == "" {
		t.Fatal("Append returned empty id")
	}

	got, err := tr.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "hello" {
		t.Errorf("Expected content 'hello', got %q", got.Content)
	}
}

func TestTranscriptDuplicateID(t *testing.T) {
	tr := NewTranscript()

	first := NewUserMessage("one")
	if _, err := tr.Append(first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dup := NewUserMessage("two")
	dup.ID = first.ID
	_, err := tr.Append(dup)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}

	// The store must be untouched by the failed append.
	if tr.Len() != 1 {
		t.Errorf("Expected 1 message after failed append, got %d", tr.Len())
	}
}

func TestTranscriptRemoveIsIdempotent(t *testing.T) {
	tr := NewTranscript()

	msg := NewUserMessage("bye")
	id, _ := tr.Append(msg)

	tr.Remove(id)
	if _, err := tr.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after remove, got %v", err)
	}

	// Double delete is a no-op, not a panic or error.
	tr.Remove(id)
	if tr.Len() != 0 {
		t.Errorf("Expected empty transcript, got %d messages", tr.Len())
	}
}

func TestTranscriptRemoveReindexes(t *testing.T) {
	tr := NewTranscript()

	a, _ := tr.Append(NewUserMessage("a"))
	b, _ := tr.Append(NewUserMessage("b"))
	c, _ := tr.Append(NewUserMessage("c"))

	tr.Remove(a)

	// Remaining messages must still resolve by id and keep order.
	gotB, err := tr.Get(b)
	if err != nil {
		t.Fatalf("Get(b) failed after remove: %v", err)
	}
	gotC, err := tr.Get(c)
	if err != nil {
		t.Fatalf("Get(c) failed after remove: %v", err)
	}

	msgs := tr.Messages()
	if len(msgs) != 2 || msgs[0] != gotB || msgs[1] != gotC {
		t.Error("Remove broke insertion order or the id index")
	}
}

func TestTranscriptReplaceContent(t *testing.T) {
	tr := NewTranscript()

	id, _ := tr.Append(NewUserMessage("original"))
	if err := tr.ReplaceContent(id, "edited"); err != nil {
		t.Fatalf("ReplaceContent failed: %v", err)
	}

	msg, _ := tr.Get(id)
	if msg.Content != "edited" {
		t.Errorf("Expected content 'edited', got %q", msg.Content)
	}
	if !msg.Edited {
		t.Error("Expected Edited flag to be set")
	}
	if msg.Render != RenderPlain {
		t.Error("Replace must reset render state for a fresh render pass")
	}

	if err := tr.ReplaceContent("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestTranscriptClearKeepsPinned(t *testing.T) {
	tr := NewTranscript()

	welcome := NewWelcomeMessage("Welcome to Alfa AI")
	tr.Append(welcome)
	tr.Append(NewUserMessage("a"))
	tr.Append(NewUserMessage("b"))

	tr.Clear()

	if tr.Len() != 1 {
		t.Fatalf("Expected only the pinned message after Clear, got %d", tr.Len())
	}
	if tr.Messages()[0] != welcome {
		t.Error("Pinned welcome message did not survive Clear")
	}

	// Pinned message must still be reachable by id after reindex.
	if _, err := tr.Get(welcome.ID); err != nil {
		t.Errorf("Pinned message lost from index: %v", err)
	}
}

func TestTranscriptSubscribers(t *testing.T) {
	tr := NewTranscript()

	var changes []Change
	tr.Subscribe(func(ch Change) {
		changes = append(changes, ch)
		// Reentrancy: the store must be fully consistent inside the
		// callback. Every id the store claims to have must resolve.
		for _, m := range tr.Messages() {
			if _, err := tr.Get(m.ID); err != nil {
				t.Errorf("store inconsistent during notification: %v", err)
			}
		}
	})

	id, _ := tr.Append(NewUserMessage("x"))
	tr.ReplaceContent(id, "y")
	tr.Remove(id)
	tr.Clear()

	want := []ChangeKind{ChangeAppend, ChangeReplace, ChangeRemove, ChangeClear}
	if len(changes) != len(want) {
		t.Fatalf("Expected %d notifications, got %d", len(want), len(changes))
	}
	for i, kind := range want {
		if changes[i].Kind != kind {
			t.Errorf("notification %d: expected kind %d, got %d", i, kind, changes[i].Kind)
		}
	}
}

func TestTranscriptInsertionOrder(t *testing.T) {
	tr := NewTranscript()

	ids := []string{"1", "2", "3", "4"}
	for _, id := range ids {
		msg := NewUserMessage("m" + id)
		msg.ID = id
		if _, err := tr.Append(msg); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	for i, msg := range tr.Messages() {
		if msg.ID != ids[i] {
			t.Errorf("position %d: expected id %s, got %s", i, ids[i], msg.ID)
		}
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestGenerateLocalIDPattern(t *testing.T) {
	pattern := regexp.MustCompile(`^msg-\d+$`)
	for i := 0; i < 5; i++ {
		id := GenerateLocalID()
		if !pattern.MatchString(id) {
			t.Errorf("local id %q does not match ^msg-\\d+$", id)
		}
	}
}

func TestMessageStreamingLifecycle(t *testing.T) {
	msg := NewAssistantMessage("resp-1")

	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}

	msg.AppendDelta("Hi")
	msg.AppendDelta(" there")

	if got := msg.GetDisplayContent(); got != "Hi there" {
		t.Errorf("display content during stream: expected 'Hi there', got %q", got)
	}

	msg.FinalizeStream()

	if msg.IsStreaming {
		t.Error("message still streaming after finalize")
	}
	if msg.Content != "Hi there" {
		t.Errorf("final content: expected 'Hi there', got %q", msg.Content)
	}

	// Appending after finalize is ignored.
	msg.AppendDelta("!")
	if msg.Content != "Hi there" {
		t.Error("AppendDelta after finalize mutated content")
	}
}

func TestMessageFailStream(t *testing.T) {
	msg := NewAssistantMessage("resp-2")
	msg.AppendDelta("partial")
	msg.FailStream()

	if !msg.Errored {
		t.Error("Errored flag not set")
	}
	if msg.Content != "partial" {
		t.Errorf("revealed text lost on failure: got %q", msg.Content)
	}
	if msg.IsStreaming {
		t.Error("message still streaming after failure")
	}
}

func TestMessagePreviewUnicode(t *testing.T) {
	msg := NewUserMessage("héllo wörld, this is a long message")
	got := msg.Preview(10)
	if len([]rune(got)) != 10 {
		t.Errorf("preview length: expected 10 runes, got %d (%q)", len([]rune(got)), got)
	}
}
