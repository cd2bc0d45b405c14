// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns message content into terminal output.
//
// The package owns the markdown pipeline for assistant messages: raw
// HTML sanitization, glamour rendering, and chroma-based syntax
// highlighting for code fences. Rendering is deterministic: the same
// content at the same width always produces the same output, so
// callers may re-render freely during streaming.
//
// # Key Types
//
//   - Renderer: width-aware markdown renderer with a plain passthrough mode
//   - CodeFence: a fenced code block lifted out of markdown source
//
// # Usage
//
// Render an assistant message:
//
//	r := render.New(80)
//	out := r.RenderMessage(msg)
//
// Highlight a code sample directly:
//
//	ansi := render.Highlight(code, "python")
package render
