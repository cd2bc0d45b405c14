// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
)

// =============================================================================
// LANGUAGE DETECTION
// =============================================================================

// supportedLanguages is the fixed set of fence languages honored as-is.
// A declared language outside this set falls through to detection.
var supportedLanguages = map[string]bool{
	"javascript": true, "python": true, "java": true, "cpp": true,
	"c": true, "csharp": true, "php": true, "ruby": true, "go": true,
	"rust": true, "typescript": true, "html": true, "css": true,
	"scss": true, "json": true, "xml": true, "yaml": true,
	"markdown": true, "bash": true, "shell": true, "sql": true,
	"r": true, "matlab": true, "swift": true, "kotlin": true,
	"dart": true, "scala": true, "haskell": true, "clojure": true,
	"elixir": true, "erlang": true, "lua": true, "perl": true,
	"powershell": true, "dockerfile": true, "nginx": true,
}

// IsValidLanguage reports whether lang is a recognized fence language.
func IsValidLanguage(lang string) bool {
	return supportedLanguages[strings.ToLower(lang)]
}

// languagePattern pairs a language name with the source patterns that
// identify it. Entries are checked in order; the first match wins, so
// detection is deterministic for a given input.
type languagePattern struct {
	name     string
	patterns []*regexp.Regexp
}

var detectionTable = []languagePattern{
	{"python", []*regexp.Regexp{
		regexp.MustCompile(`(?m)^from\s+\w+\s+import`),
		regexp.MustCompile(`(?m)^import\s+\w+`),
		regexp.MustCompile(`(?m)def\s+\w+\(`),
		regexp.MustCompile(`(?m)if\s+__name__\s*==\s*['"]__main__['"]`),
	}},
	{"javascript", []*regexp.Regexp{
		regexp.MustCompile(`(?m)^const\s+\w+\s*=`),
		regexp.MustCompile(`(?m)^let\s+\w+\s*=`),
		regexp.MustCompile(`(?m)^var\s+\w+\s*=`),
		regexp.MustCompile(`(?m)function\s+\w+\(`),
		regexp.MustCompile(`=>`),
	}},
	{"html", []*regexp.Regexp{
		regexp.MustCompile(`(?is)</?[a-z][\s\S]*>`),
		regexp.MustCompile(`(?i)<!DOCTYPE`),
	}},
	{"css", []*regexp.Regexp{
		regexp.MustCompile(`(?m)\{[^}]*\}`),
		regexp.MustCompile(`(?m)@media`),
		regexp.MustCompile(`(?m)\.[a-zA-Z][\w-]*\s*\{`),
	}},
	{"json", []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*[{\[]`),
		regexp.MustCompile(`(?m)"\w+"\s*:`),
	}},
	{"bash", []*regexp.Regexp{
		regexp.MustCompile(`(?m)^#!`),
		regexp.MustCompile(`(?m)\$\w+`),
		regexp.MustCompile(`(?m)echo\s+`),
	}},
	{"sql", []*regexp.Regexp{
		regexp.MustCompile(`(?i)SELECT\s+`),
		regexp.MustCompile(`(?i)FROM\s+`),
		regexp.MustCompile(`(?i)WHERE\s+`),
		regexp.MustCompile(`(?i)INSERT\s+INTO`),
	}},
	{"java", []*regexp.Regexp{
		regexp.MustCompile(`(?m)public\s+class\s+\w+`),
		regexp.MustCompile(`(?m)public\s+static\s+void\s+main`),
	}},
	{"cpp", []*regexp.Regexp{
		regexp.MustCompile(`(?m)#include\s*<\w+>`),
		regexp.MustCompile(`(?m)int\s+main\s*\(`),
		regexp.MustCompile(`(?m)std::`),
	}},
	{"php", []*regexp.Regexp{
		regexp.MustCompile(`(?m)<\?php`),
		regexp.MustCompile(`(?m)\$\w+`),
	}},
}

// DetectLanguage guesses the language of a code sample from common source
// patterns. Returns "text" when nothing matches.
func DetectLanguage(code string) string {
	for _, entry := range detectionTable {
		for _, p := range entry.patterns {
			if p.MatchString(code) {
				return entry.name
			}
		}
	}
	return "text"
}

// ResolveLanguage picks the highlighting language for a code fence: the
// declared language when recognized, otherwise pattern detection on the
// body.
func ResolveLanguage(declared, code string) string {
	if declared != "" && IsValidLanguage(declared) {
		return strings.ToLower(declared)
	}
	return DetectLanguage(code)
}
