// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
	"github.com/jeranaias/alfachat-tui/internal/util"
)

// =============================================================================
// SPINNER COMPONENT
// =============================================================================

// SpinnerTickMsg advances the spinner animation.
type SpinnerTickMsg struct {
	Time time.Time
}

// Spinner is an animated loading indicator with an elapsed timer.
type Spinner struct {
	config    styles.SpinnerConfig
	frame     int
	message   string
	active    bool
	startTime time.Time
	showTimer bool
	theme     *styles.Theme
}

// NewSpinner creates a spinner with the default animation.
func NewSpinner(theme *styles.Theme) Spinner {
	return Spinner{
		config:    styles.BrailleSpinner,
		message:   "Thinking",
		showTimer: true,
		theme:     theme,
	}
}

// SetMessage sets the label displayed beside the animation.
func (s *Spinner) SetMessage(msg string) {
	s.message = msg
}

// Start activates the spinner and schedules the first tick.
func (s *Spinner) Start() tea.Cmd {
	s.active = true
	s.frame = 0
	s.startTime = time.Now()
	return s.tick()
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	return s.active
}

// Elapsed returns time since Start.
func (s *Spinner) Elapsed() time.Duration {
	if !s.active {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Spinner) tick() tea.Cmd {
	return tea.Tick(s.config.Duration(), func(t time.Time) tea.Msg {
		return SpinnerTickMsg{Time: t}
	})
}

// Update advances the animation on tick messages.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if _, ok := msg.(SpinnerTickMsg); ok && s.active {
		s.frame = (s.frame + 1) % len(s.config.Frames)
		return s, s.tick()
	}
	return s, nil
}

// View renders the current frame, label, and timer.
func (s Spinner) View() string {
	if !s.active {
		return ""
	}
	out := s.theme.Spinner.Render(s.config.Frames[s.frame]) + " " +
		s.theme.ThinkingText.Render(s.message)
	if s.showTimer {
		out += " " + s.theme.ThinkingTime.Render("("+formatElapsed(s.Elapsed())+")")
	}
	return out
}

// formatElapsed renders a duration as "Ns" or "NmNs" without fmt.
func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return util.IntToString(secs) + "s"
	}
	return util.IntToString(secs/60) + "m" + util.IntToString(secs%60) + "s"
}
