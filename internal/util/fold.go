// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the Unicode case-folded form of s, suitable for
// case-insensitive comparison across scripts.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// FoldContains reports whether haystack contains needle under Unicode
// case folding. Used for filter boxes so "readme" matches "README.md".
func FoldContains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}

// FoldEqual reports whether two strings are equal under case folding.
func FoldEqual(a, b string) bool {
	return Fold(a) == Fold(b)
}
