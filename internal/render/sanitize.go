// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
)

// =============================================================================
// SANITIZATION
// =============================================================================

// Raw HTML arriving in model output must never be interpreted as markup.
// Inside code fences and inline code spans the text is already literal,
// so only tag-like sequences outside code are escaped.

// isTagStart reports whether the byte after '<' could begin an HTML tag.
func isTagStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '/' || b == '!'
}

// SanitizeMarkdown escapes raw HTML in markdown source so the rendered
// output shows tags as visible text. Code fences and inline code spans
// are left untouched.
func SanitizeMarkdown(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	inFence := false
	inSpan := false

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			inSpan = false
			b.WriteString(line)
		} else if inFence {
			b.WriteString(line)
		} else {
			for j := 0; j < len(line); j++ {
				c := line[j]
				switch {
				case c == '`':
					inSpan = !inSpan
					b.WriteByte(c)
				case c == '<' && !inSpan && j+1 < len(line) && isTagStart(line[j+1]):
					b.WriteString("&lt;")
				default:
					b.WriteByte(c)
				}
			}
			inSpan = false // spans do not cross lines
		}
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
