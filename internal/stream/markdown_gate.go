// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the streaming coordinator.
package stream

import (
	"regexp"
	"strings"
)

// =============================================================================
// PARTIAL-MARKDOWN GATE
// =============================================================================

// Partially revealed markdown is only re-parsed when the text contains at
// least one complete construct; re-parsing mid-token flashes malformed
// output (an unclosed fence swallowing the rest of the message, a lone
// ** bolding everything after it). This is a presentation nicety: the
// final render after done is always a full parse regardless of what the
// gate said along the way.
var completeConstructs = []*regexp.Regexp{
	regexp.MustCompile("(?s)```[\\w]*\n.*?```"),      // closed code fence
	regexp.MustCompile(`(?m)^#{1,6}\s.+$`),           // full heading line
	regexp.MustCompile(`(?m)^\*\s.+$`),               // complete list item
	regexp.MustCompile(`(?m)^\d+\.\s.+$`),            // complete numbered item
	regexp.MustCompile(`\*\*[^*\n]+\*\*`),            // closed bold marker
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),        // complete link
}

var fenceOpen = regexp.MustCompile("```\\w*\n")

// ShouldRenderMarkdown reports whether the accumulated partial text is
// safe to re-parse as markdown right now.
func ShouldRenderMarkdown(content string) bool {
	for _, re := range completeConstructs {
		if re.MatchString(content) {
			return true
		}
	}
	// A started fence with some body behind it renders acceptably even
	// before the closing fence arrives.
	return fenceOpen.MatchString(content) && len(content) > 10
}

// AtRenderBoundary reports whether the reveal position is a coarse
// boundary worth re-rendering at: every few characters, or right after
// whitespace so words appear whole.
func AtRenderBoundary(content string, revealed int) bool {
	if revealed == 0 {
		return false
	}
	if revealed%10 == 0 {
		return true
	}
	return strings.HasSuffix(content, " ") || strings.HasSuffix(content, "\n")
}
