// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Every color carries a light and a dark variant. Theme resolves them
// explicitly so the user can override terminal detection.

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - assistant messages, selection
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - user messages, brand
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - success
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - warnings, offline mode
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Sky - info toasts
var Sky = lipgloss.AdaptiveColor{Light: "#0284C7", Dark: "#7DD3FC"}

// =============================================================================
// SURFACES
// =============================================================================

var (
	Surface    = lipgloss.AdaptiveColor{Light: "#F8FAFC", Dark: "#1E1E2E"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F1F5F9", Dark: "#181825"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#45475A"}
)

// =============================================================================
// TEXT
// =============================================================================

var (
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#0F172A", Dark: "#F8FAFC"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#475569", Dark: "#CBD5E1"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#F8FAFC", Dark: "#0F172A"}
)

// =============================================================================
// MESSAGE BUBBLES
// =============================================================================

var (
	UserBubbleBg          = lipgloss.AdaptiveColor{Light: "#E0F2FE", Dark: "#1E3A5F"}
	UserBubbleBorder      = lipgloss.AdaptiveColor{Light: "#7DD3FC", Dark: "#0891B2"}
	AssistantBubbleBg     = lipgloss.AdaptiveColor{Light: "#F5F3FF", Dark: "#2E1065"}
	AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#C4B5FD", Dark: "#7C3AED"}
	SystemBubbleBorder    = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#585B70"}
)
