// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME MODE
// =============================================================================

// Mode selects how the theme picks between light and dark colors.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ParseMode maps a config value to a Mode. Unknown values mean auto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDark:
		return ModeDark
	case ModeLight:
		return ModeLight
	default:
		return ModeAuto
	}
}

// detectDarkBackground asks the terminal for its background color.
var detectDarkBackground = termenv.HasDarkBackground

// =============================================================================
// THEME
// =============================================================================

// Theme holds every style the TUI renders with, resolved for one
// background (light or dark).
type Theme struct {
	Mode         Mode
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Sidebar
	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SidebarItem         lipgloss.Style
	SidebarItemActive   lipgloss.Style
	SidebarItemMeta     lipgloss.Style
	SidebarEmpty        lipgloss.Style
	SidebarSearch       lipgloss.Style
	SidebarSearchActive lipgloss.Style

	// Messages
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	SystemLabel     lipgloss.Style
	Timestamp       lipgloss.Style
	Attachment      lipgloss.Style
	EmptyState      lipgloss.Style

	// Composer
	Composer         lipgloss.Style
	ComposerDisabled lipgloss.Style
	Pending          lipgloss.Style
	Prompt           lipgloss.Style
	PromptLabel      lipgloss.Style

	// Status
	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	StatusText lipgloss.Style
	Spinner    lipgloss.Style
	Typing     lipgloss.Style

	// Notifications
	ToastSuccess   lipgloss.Style
	ToastError     lipgloss.Style
	ToastWarning   lipgloss.Style
	ToastInfo      lipgloss.Style
	DegradedBanner lipgloss.Style
	ErrorText      lipgloss.Style
	Muted          lipgloss.Style
}

// NewTheme builds a theme for the given mode ("auto", "dark" or "light").
func NewTheme(mode string) *Theme {
	t := &Theme{
		Mode:         ParseMode(mode),
		ColorProfile: termenv.ColorProfile(),
	}
	switch t.Mode {
	case ModeDark:
		t.IsDark = true
	case ModeLight:
		t.IsDark = false
	default:
		t.IsDark = detectDarkBackground()
	}
	t.initStyles()
	return t
}

// Toggle switches between the dark and light palettes. The mode becomes
// explicit so terminal detection no longer applies.
func (t *Theme) Toggle() {
	t.IsDark = !t.IsDark
	if t.IsDark {
		t.Mode = ModeDark
	} else {
		t.Mode = ModeLight
	}
	t.initStyles()
}

// Name is the palette currently in use.
func (t *Theme) Name() string {
	if t.IsDark {
		return string(ModeDark)
	}
	return string(ModeLight)
}

// Toast returns the style for a notification kind.
func (t *Theme) Toast(kind string) lipgloss.Style {
	switch kind {
	case "success":
		return t.ToastSuccess
	case "error":
		return t.ToastError
	case "warning":
		return t.ToastWarning
	default:
		return t.ToastInfo
	}
}

// Color resolves an adaptive color for the current palette.
func (t *Theme) Color(c lipgloss.AdaptiveColor) lipgloss.Color {
	if t.IsDark {
		return lipgloss.Color(c.Dark)
	}
	return lipgloss.Color(c.Light)
}

// =============================================================================
// STYLE INITIALIZATION
// =============================================================================

func (t *Theme) initStyles() {
	c := t.Color

	// Layout
	t.App = lipgloss.NewStyle()
	t.Header = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextPrimary)).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(c(Cyan)).
		Bold(true)
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(c(Overlay)).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().
		Foreground(c(TextSecondary)).
		Bold(true).
		MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(c(TextPrimary))
	t.SidebarItemActive = lipgloss.NewStyle().
		Foreground(c(Purple)).
		Bold(true)
	t.SidebarItemMeta = lipgloss.NewStyle().
		Foreground(c(TextMuted))
	t.SidebarEmpty = lipgloss.NewStyle().
		Foreground(c(TextMuted)).
		Italic(true)
	t.SidebarSearch = lipgloss.NewStyle().
		Foreground(c(TextMuted))
	t.SidebarSearchActive = lipgloss.NewStyle().
		Foreground(c(Cyan))

	// Messages
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	t.UserBubble = bubble.
		BorderForeground(c(UserBubbleBorder)).
		Foreground(c(TextPrimary))
	t.AssistantBubble = bubble.
		BorderForeground(c(AssistantBubbleBorder)).
		Foreground(c(TextPrimary))
	t.SystemBubble = bubble.
		BorderForeground(c(SystemBubbleBorder)).
		Foreground(c(TextSecondary)).
		Italic(true)
	t.UserLabel = lipgloss.NewStyle().Foreground(c(Cyan)).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(c(Purple)).Bold(true)
	t.SystemLabel = lipgloss.NewStyle().Foreground(c(TextMuted)).Bold(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(c(TextMuted))
	t.Attachment = lipgloss.NewStyle().Foreground(c(TextSecondary))
	t.EmptyState = lipgloss.NewStyle().
		Foreground(c(TextMuted)).
		Italic(true).
		Padding(1, 2)

	// Composer
	t.Composer = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(Cyan))
	t.ComposerDisabled = t.Composer.
		BorderForeground(c(Overlay))
	t.Pending = lipgloss.NewStyle().
		Foreground(c(TextSecondary))
	t.Prompt = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(Amber)).
		Padding(0, 1)
	t.PromptLabel = lipgloss.NewStyle().
		Foreground(c(Amber)).
		Bold(true)

	// Status
	t.StatusBar = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextSecondary)).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(Cyan)).
		Bold(true)
	t.StatusText = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextMuted))
	t.Spinner = lipgloss.NewStyle().Foreground(c(Purple))
	t.Typing = lipgloss.NewStyle().Foreground(c(TextMuted)).Italic(true)

	// Notifications
	toast := lipgloss.NewStyle().
		Foreground(c(TextInverse)).
		Bold(true).
		Padding(0, 1)
	t.ToastSuccess = toast.Background(c(Emerald))
	t.ToastError = toast.Background(c(Rose))
	t.ToastWarning = toast.Background(c(Amber))
	t.ToastInfo = toast.Background(c(Sky))
	t.DegradedBanner = lipgloss.NewStyle().
		Foreground(c(Amber)).
		Bold(true).
		Padding(0, 1)
	t.ErrorText = lipgloss.NewStyle().Foreground(c(Rose))
	t.Muted = lipgloss.NewStyle().Foreground(c(TextMuted))
}
