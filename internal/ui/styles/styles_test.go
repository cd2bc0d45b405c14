// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewThemeBuildsStyles(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}
	// Styles must render without panicking; content passes through.
	out := theme.UserBubble.Render("hello")
	if !strings.Contains(out, "hello") {
		t.Errorf("rendered bubble lost content: %q", out)
	}
}

func TestThemeSetSize(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("size = %dx%d, want 120x40", theme.Width, theme.Height)
	}
}

func TestSpinnerDuration(t *testing.T) {
	if d := LineSpinner.Duration(); d <= 0 {
		t.Errorf("duration = %v, want positive", d)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		width   int
		percent float64
		wantLen int
	}{
		{10, 0, 10},
		{10, 50, 10},
		{10, 100, 10},
		{10, 150, 10},
		{10, -5, 10},
		{0, 50, 0},
	}
	for _, tt := range tests {
		got := RenderProgressBar(tt.width, tt.percent)
		if len(got) != tt.wantLen {
			t.Errorf("RenderProgressBar(%d, %v) len = %d, want %d",
				tt.width, tt.percent, len(got), tt.wantLen)
		}
	}
	full := RenderProgressBar(8, 100)
	if strings.Contains(full, ProgressEmpty) {
		t.Errorf("full bar contains empty chars: %q", full)
	}
}

func TestRenderStatusIndicators(t *testing.T) {
	if out := RenderSuccess("done"); !strings.Contains(out, "[OK]") {
		t.Errorf("success output = %q", out)
	}
	if out := RenderError("bad"); !strings.Contains(out, "[X]") {
		t.Errorf("error output = %q", out)
	}
	if out := RenderStatus(false, "bad"); !strings.Contains(out, "[X]") {
		t.Errorf("status output = %q", out)
	}
}
