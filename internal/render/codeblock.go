// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight applies ANSI syntax highlighting to a code sample. The
// language is resolved through ResolveLanguage, so an unknown declared
// language degrades to pattern detection rather than an error. Input
// that already carries ANSI escapes is returned unchanged, which makes
// the function safe to call again on its own output.
func Highlight(code, declared string) string {
	if strings.Contains(code, "\x1b[") {
		return code
	}
	return highlightCode(code, ResolveLanguage(declared, code))
}

// highlightCode tokenizes and formats code with chroma. Returns the
// input unchanged on any failure.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// =============================================================================
// FENCE EXTRACTION
// =============================================================================

// CodeFence is a fenced code block lifted out of markdown source.
type CodeFence struct {
	Language string
	Code     string
}

// ExtractFences returns the fenced code blocks in a markdown document,
// in order. An unterminated trailing fence is included with whatever
// body it has so far.
func ExtractFences(text string) []CodeFence {
	var fences []CodeFence
	var body []string
	var language string
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "```") {
			if inFence {
				fences = append(fences, CodeFence{
					Language: language,
					Code:     strings.Join(body, "\n"),
				})
				body = nil
				language = ""
				inFence = false
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
				inFence = true
			}
			continue
		}
		if inFence {
			body = append(body, line)
		}
	}

	if inFence && len(body) > 0 {
		fences = append(fences, CodeFence{
			Language: language,
			Code:     strings.Join(body, "\n"),
		})
	}

	return fences
}

// HighlightFences returns the document with every fenced code block's
// body syntax-highlighted in place. Text outside fences and the fence
// markers themselves pass through untouched. This is the code path for
// output that skips glamour: the passthrough renderer and plain-mode
// history replay.
func HighlightFences(text string) string {
	fences := ExtractFences(text)
	if len(fences) == 0 {
		return text
	}

	var out []string
	idx := 0
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "```") {
			if inFence {
				inFence = false
			} else {
				out = append(out, line)
				if idx < len(fences) {
					out = append(out, strings.TrimRight(Highlight(fences[idx].Code, fences[idx].Language), "\n"))
					idx++
				}
				inFence = true
				continue
			}
		}
		if !inFence {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
