// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the Alfa AI
// TUI: the scrollable transcript viewport, message bubbles, the
// composer, the status bar, toast notifications, the file panel, and
// the welcome splash.
//
// Components are plain structs rendered with Lip Gloss; stateful ones
// (viewport, spinner, input) follow the Bubble Tea Update/View pattern
// so the chat model can compose them.
//
// # Key Types
//
//   - ChatViewport: scrollable transcript, drives the smooth-scroll surface
//   - MessageBubble / MessageList: role-styled message rendering
//   - InputArea: message composer with character counter
//   - StatusBar: connection, retrieval toggle, and shortcut hints
//   - ToastManager: transient error/status notifications
//   - FilePanel: workspace browser overlay
//   - Welcome: empty-transcript splash
package components
