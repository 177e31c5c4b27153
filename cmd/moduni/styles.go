// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output. Tuned for dark terminals.
const (
	// ColorPrimary is purple, used for titles and module names.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green, used for clean modules and satisfied dependencies.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red, used for failures and unmet dependencies.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber, used for dirty working copies.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue, used for versions and commands.
	ColorHighlight = lipgloss.Color("#3B82F6")

	// ColorVerbose is light gray, used for paths and IDs.
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for versions, command names and code.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// VerboseStyle is for paths, IDs and supplementary details.
	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)

	// nameColumnStyle pads module names in text listings.
	nameColumnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Width(24)

	// versionColumnStyle pads versions in text listings.
	versionColumnStyle = lipgloss.NewStyle().
				Foreground(ColorHighlight).
				Width(12)
)

// managerStyle renders a manager name in the color it is configured with.
func managerStyle(color string) lipgloss.Style {
	if color == "" {
		return SubtitleStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}
