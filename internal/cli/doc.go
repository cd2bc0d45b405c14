// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain-mode chat client.
//
// Plain mode is for terminals and scripts where the full-screen TUI is
// not wanted: a readline prompt, streamed responses printed as they
// arrive, and slash commands for the file and retrieval APIs. It talks
// the same WebSocket protocol as the TUI.
//
// # Key Types
//
//   - REPL: one interactive session, created with NewREPL
//   - ChatCLI: line editing and persistent input history
//
// # Usage
//
//	cfg, _ := config.Load()
//	if err := cli.Run(cfg, logger); err != nil {
//		...
//	}
//
// Output styling follows the terminal: colors are dropped for piped
// stdout and when NO_COLOR is set.
package cli
