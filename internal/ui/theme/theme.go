// Package theme holds the terminal palette and text styles of the CLI.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Vivid Purple
	Accent  = lipgloss.Color("#14B8A6") // Teal
	Success = lipgloss.Color("#22C55E") // Green
	Warning = lipgloss.Color("#F97316") // Orange
	Error   = lipgloss.Color("#F43F5E") // Rose
	TextDim = lipgloss.Color("#94A3B8") // Slate
	Border  = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Outcomes
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Failed = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Aborted = lipgloss.NewStyle().
		Foreground(Warning).
		Bold(true)
)

// Banner frames the generation header.
var Banner = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

// Outcome returns the style for a session outcome name.
func Outcome(outcome string) lipgloss.Style {
	switch outcome {
	case "complete":
		return Correct
	case "aborted":
		return Aborted
	default:
		return Failed
	}
}
