// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "testing"

func TestFoldContains(t *testing.T) {
	testCases := []struct {
		haystack string
		needle   string
		expected bool
	}{
		{"README.md", "readme", true},
		{"notes.txt", "NOTES", true},
		{"straße.txt", "STRASSE", true},
		{"report.pdf", "summary", false},
		{"anything", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.haystack+"/"+tc.needle, func(t *testing.T) {
			if got := FoldContains(tc.haystack, tc.needle); got != tc.expected {
				t.Errorf("FoldContains(%q, %q) = %v, want %v",
					tc.haystack, tc.needle, got, tc.expected)
			}
		})
	}
}

func TestFoldEqual(t *testing.T) {
	if !FoldEqual("Alfa", "ALFA") {
		t.Error("case-insensitive equality failed")
	}
	if FoldEqual("alfa", "beta") {
		t.Error("distinct strings compared equal")
	}
}
