// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the main chat view of the Alfa AI terminal client.
//
// The model wires the message store, the streaming reveal coordinator,
// the scroll controller and the WebSocket bridge into one Bubble Tea
// update loop. The bridge and coordinator are single-threaded by
// contract, so the WebSocket read loop never touches them directly: it
// forwards raw envelopes over a channel and the update loop applies
// them.
//
// # Key Types
//
//   - Model: the Bubble Tea model, created with New
//   - State: connection state (connecting, ready, offline)
//   - KeyMap: keyboard bindings, DefaultKeyMap for the defaults
//
// # Usage
//
//	cfg, _ := config.Load()
//	m := chat.New(cfg, logger)
//	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
//	_, err := p.Run()
//
// A reveal tick runs only while something is animating: an active
// stream, a pending send or a scroll animation. Each tick advances the
// coordinator, refreshes the viewport, and requests a smooth scroll to
// bottom when follow mode is on.
package chat
