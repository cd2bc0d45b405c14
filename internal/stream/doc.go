// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the streaming coordinator: a small state
// machine (idle / streaming) that buffers network deltas for one
// in-flight assistant message and drives a tick-based character reveal.
//
// The coordinator is passive. The UI event loop calls Tick on a fixed
// cadence; tests drive Tick directly, so the reveal logic runs without
// real timers. The displayed text after done always equals the exact
// concatenation of the received deltas, regardless of tick timing.
package stream
