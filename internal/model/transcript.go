// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat transcript.
package model

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateID is returned by Append when the id is already present.
	ErrDuplicateID = errors.New("duplicate message id")

	// ErrNotFound is returned when a message id is not in the transcript.
	ErrNotFound = errors.New("message not found")
)

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// ChangeKind describes what happened to the transcript.
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeReplace
	ChangeRemove
	ChangeClear
)

// Change is delivered to subscribers after a mutation completes.
type Change struct {
	Kind      ChangeKind
	MessageID string // empty for ChangeClear
}

// Subscriber receives transcript change notifications. Callbacks run
// synchronously on the mutating goroutine, after the store is consistent;
// a subscriber may read the store but must not mutate it reentrantly.
type Subscriber func(Change)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the in-memory ordered message store: the single source of
// truth for what is rendered. Iteration yields insertion order; there is
// no other ordering guarantee. All access happens on the UI event loop,
// so no locking is required, but every mutation finishes updating both
// the slice and the index before subscribers are notified.
type Transcript struct {
	messages []*Message
	index    map[string]int // id -> position in messages

	subscribers []Subscriber

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		messages: make([]*Message, 0),
		index:    make(map[string]int),
	}
}

// Subscribe registers a change callback.
func (t *Transcript) Subscribe(fn Subscriber) {
	t.subscribers = append(t.subscribers, fn)
}

// notify delivers a change to all subscribers. Called only after the
// mutation is fully applied.
func (t *Transcript) notify(ch Change) {
	t.UpdatedAt = time.Now()
	for _, fn := range t.subscribers {
		fn(ch)
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append inserts a message at the end. Ids must be unique within the
// transcript; a duplicate id fails with ErrDuplicateID.
func (t *Transcript) Append(msg *Message) (string, error) {
	if msg == nil {
		return "", errors.New("nil message")
	}
	if msg.ID == "" {
		msg.ID = GenerateLocalID()
	}
	if _, exists := t.index[msg.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}

	t.messages = append(t.messages, msg)
	t.index[msg.ID] = len(t.messages) - 1

	t.notify(Change{Kind: ChangeAppend, MessageID: msg.ID})
	return msg.ID, nil
}

// Get returns the message with the given id.
func (t *Transcript) Get(id string) (*Message, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.messages[i], nil
}

// Has reports whether the id is present.
func (t *Transcript) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// ReplaceContent replaces a message's content wholesale (edit and
// regenerate paths) and resets its render state.
func (t *Transcript) ReplaceContent(id, content string) error {
	msg, err := t.Get(id)
	if err != nil {
		return err
	}
	msg.ReplaceContent(content)
	t.notify(Change{Kind: ChangeReplace, MessageID: id})
	return nil
}

// Remove deletes a message and signals removal to dependents. Removing
// an absent id is a no-op, not an error: the delete button in the UI does
// not special-case a double delete.
func (t *Transcript) Remove(id string) {
	i, ok := t.index[id]
	if !ok {
		return
	}

	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	delete(t.index, id)
	t.reindexFrom(i)

	t.notify(Change{Kind: ChangeRemove, MessageID: id})
}

// Clear removes all messages except those flagged Pinned. Used on
// reconnect so the welcome banner survives.
func (t *Transcript) Clear() {
	kept := t.messages[:0]
	for _, msg := range t.messages {
		if msg.Pinned {
			kept = append(kept, msg)
		}
	}
	t.messages = kept

	t.index = make(map[string]int, len(t.messages))
	for i, msg := range t.messages {
		t.index[msg.ID] = i
	}

	t.notify(Change{Kind: ChangeClear})
}

// reindexFrom rebuilds index entries for positions >= start.
func (t *Transcript) reindexFrom(start int) {
	for i := start; i < len(t.messages); i++ {
		t.index[t.messages[i].ID] = i
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns the transcript in insertion order. The returned slice
// is the store's own backing array; callers must treat it as read-only.
func (t *Transcript) Messages() []*Message {
	return t.messages
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// IsEmpty returns true if there are no messages.
func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

// Last returns the most recent message, or nil if empty.
func (t *Transcript) Last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// LastOfRole returns the most recent message with the given role, or nil.
func (t *Transcript) LastOfRole(role Role) *Message {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == role {
			return t.messages[i]
		}
	}
	return nil
}
