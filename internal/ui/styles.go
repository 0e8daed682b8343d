package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("203") // Red
)

// Accent colors selectable via the theme preference.
var themeAccents = map[string]lipgloss.Color{
	"purple": lipgloss.Color("62"),
	"ocean":  lipgloss.Color("31"),
	"plum":   lipgloss.Color("96"),
}

// ApplyTheme switches the accent color used for selection highlights.
// Unknown names keep the default.
func ApplyTheme(name string) {
	accent, ok := themeAccents[name]
	if !ok {
		return
	}
	TabActive = TabActive.Background(accent)
	SelectedRow = SelectedRow.Background(accent)
}

// TabActive style for the selected tab label.
var TabActive = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 2)

// TabInactive style for unselected tab labels.
var TabInactive = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 2)

// HeaderRow style for table header lines.
var HeaderRow = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// SelectedRow style for the highlighted table row.
var SelectedRow = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalRow style for unselected table rows.
var NormalRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// StatusDone style for terminal-success status text.
var StatusDone = lipgloss.NewStyle().Foreground(colorSuccess)

// StatusActive style for in-progress status text.
var StatusActive = lipgloss.NewStyle().Foreground(colorWarning)

// StatusFailed style for failed status text.
var StatusFailed = lipgloss.NewStyle().Foreground(colorDanger)

// FilterBadge style for an actively-restricting filter.
var FilterBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorWarning).
	Padding(0, 1).
	MarginRight(1)

// FilterBadgeOff style for an inactive filter.
var FilterBadgeOff = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1).
	MarginRight(1)

// ErrorBar style for the error line above the status bar.
var ErrorBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorDanger).
	Padding(0, 1)

// WarnBar style for non-blocking warnings (group polling blips).
var WarnBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("232")).
	Background(colorWarning).
	Padding(0, 1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// Muted style for secondary text.
var Muted = lipgloss.NewStyle().Foreground(colorSecondary)
