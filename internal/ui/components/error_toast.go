// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/alfachat-tui/internal/ui/styles"
)

// =============================================================================
// TOAST NOTIFICATIONS
// =============================================================================

// ToastKind classifies a toast for styling.
type ToastKind int

const (
	ToastError ToastKind = iota
	ToastWarning
	ToastStatus
	ToastSuccess
)

// toastDuration is how long each kind stays visible.
func (k ToastKind) duration() time.Duration {
	switch k {
	case ToastError:
		return 8 * time.Second
	case ToastWarning:
		return 6 * time.Second
	default:
		return 4 * time.Second
	}
}

// Toast is one transient notification.
type Toast struct {
	ID        int
	Kind      ToastKind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the toast should be dismissed.
func (t *Toast) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

const maxToasts = 3

// ToastManager holds the active toast stack, newest last.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
}

// NewToastManager creates an empty manager.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1}
}

func (m *ToastManager) add(kind ToastKind, message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	now := time.Now()
	m.toasts = append(m.toasts, Toast{
		ID:        id,
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(kind.duration()),
	})
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	return id
}

// AddError queues an error toast.
func (m *ToastManager) AddError(message string) int { return m.add(ToastError, message) }

// AddWarning queues a warning toast.
func (m *ToastManager) AddWarning(message string) int { return m.add(ToastWarning, message) }

// AddStatus queues an informational toast.
func (m *ToastManager) AddStatus(message string) int { return m.add(ToastStatus, message) }

// AddSuccess queues a success toast.
func (m *ToastManager) AddSuccess(message string) int { return m.add(ToastSuccess, message) }

// Tick drops expired toasts and returns the survivors.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.IsExpired() {
			live = append(live, t)
		}
	}
	m.toasts = live
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// HasToasts reports whether anything is visible.
func (m *ToastManager) HasToasts() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts) > 0
}

// Clear removes every toast.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// ToastTickMsg drives toast expiry.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next expiry check.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderToast renders one toast box at the given width.
func RenderToast(theme *styles.Theme, toast Toast, width int) string {
	var title string
	var titleStyle lipgloss.Style
	switch toast.Kind {
	case ToastError:
		title, titleStyle = styles.StatusIndicators.Error+" Error", theme.ErrorStyle
	case ToastWarning:
		title, titleStyle = styles.StatusIndicators.Warning+" Warning", theme.WarningStyle
	case ToastSuccess:
		title, titleStyle = styles.StatusIndicators.Success+" Done", theme.SuccessStyle
	default:
		title, titleStyle = styles.StatusIndicators.Info+" Info", theme.InfoStyle
	}

	boxWidth := minInt(width-4, 60)
	body := wordWrap(toast.Message, boxWidth-4)
	return theme.ErrorBox.Width(boxWidth).Render(
		titleStyle.Render(title) + "\n" + theme.ErrorMessage.Render(body))
}

// RenderToastStack renders the active toasts top-aligned, newest last.
func RenderToastStack(theme *styles.Theme, toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	var boxes []string
	for _, t := range toasts {
		boxes = append(boxes, RenderToast(theme, t, width))
	}
	return strings.Join(boxes, "\n")
}
