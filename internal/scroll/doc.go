// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scroll keeps the chat viewport pinned to the newest content.
//
// The controller owns the single scroll animation: rapid requests
// coalesce into at most one queued follow-up, repeat requests inside a
// short debounce window are dropped, and a request near the bottom is
// treated as already satisfied. Motion is driven entirely through
// Tick, so the package has no timers of its own; the UI supplies the
// clock in production and tests supply it directly.
//
// # Key Types
//
//   - Controller: debounced, coalescing scroll-to-bottom state machine
//   - Surface: the scrollable viewport the controller drives
package scroll
