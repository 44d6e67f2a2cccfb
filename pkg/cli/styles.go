package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/beam-cloud/kbpicker/pkg/picker"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("#8B5CF6") // Purple - brand color
	ColorSuccess = lipgloss.Color("#22C55E") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorInfo    = lipgloss.Color("#3B82F6") // Blue
	ColorSubtle  = lipgloss.Color("#6B7280") // Gray
	ColorMuted   = lipgloss.Color("#9CA3AF") // Light gray
)

// Symbols for consistent visual language
const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "!"
	SymbolInfo     = "→"
	SymbolBullet   = "•"
	SymbolSelected = "[x]"
	SymbolEmpty    = "[ ]"
	SymbolFolder   = "▸"
)

// Text styles
var (
	// Brand
	BrandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// Status styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	// Text variations
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	// Key-value styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Width(12)

	// Table styles
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorSubtle)

	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	// Code/path style
	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	// Hint style for suggestions
	HintStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)
)

// badgeStyles maps badge tones onto terminal colors
var badgeStyles = map[picker.Tone]lipgloss.Style{
	picker.ToneSecondary:   lipgloss.NewStyle().Foreground(ColorInfo),
	picker.ToneSuccess:     lipgloss.NewStyle().Foreground(ColorSuccess),
	picker.ToneDestructive: lipgloss.NewStyle().Foreground(ColorError),
	picker.ToneOutline:     lipgloss.NewStyle().Foreground(ColorMuted),
}

// RenderBadge renders a status badge in its tone
func RenderBadge(badge picker.BadgeInfo) string {
	style, ok := badgeStyles[badge.Tone]
	if !ok {
		style = DimStyle
	}
	return style.Render(badge.Label)
}
