package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every report, tuned for dark terminal backgrounds.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
	ColorVerbose   = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for report titles and section headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle renders command lines inside reports.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)

	// detailStyle indents the multi-line body of a report.
	detailStyle = lipgloss.NewStyle().
			PaddingLeft(2)
)
