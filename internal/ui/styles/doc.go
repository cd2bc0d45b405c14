// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the Alfa AI
// TUI: an adaptive color palette, the Theme of pre-built Lip Gloss
// styles, and spinner/progress animation frames.
//
// Colors are lipgloss.AdaptiveColor pairs so light and dark terminals
// both get readable output. Status indicators use ASCII shapes
// alongside color for colorblind accessibility.
//
// # Key Types
//
//   - Theme: every styled component, built once by NewTheme
//   - SpinnerConfig: frame sets for loading animations
//   - StatusIndicatorSet: shape indicators for status states
//
// # Usage
//
//	theme := styles.NewTheme()
//	fmt.Println(theme.UserBubble.Render("hello"))
package styles
