// Package cli renders quotesmith's terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/quotesmith/internal/model"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#3A6EA5")
	SuccessColor = lipgloss.Color("#4ECDC4")
	WarningColor = lipgloss.Color("#F4B942")
	ErrorColor   = lipgloss.Color("#E05A5A")
	InfoColor    = lipgloss.Color("#8FB8DE")
	SubtleColor  = lipgloss.Color("#777777")
	BorderColor  = lipgloss.Color("#3C3C3C")
)

var (
	// TitleStyle renders report and preview headings.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	// BoxStyle frames the run summary.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 2)

	// TableCellStyle pads every cell of the row tables.
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	// PromptStyle renders the confirmation question.
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	QuoteIcon   = "🧾"
	RobotIcon   = "🤖"
	SkipIcon    = "↷"
	PauseIcon   = "⏸"
)

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the quote icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(QuoteIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox frames content under a heading.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}

// StatusStyle picks the style for a run status.
func StatusStyle(status model.RunStatus) lipgloss.Style {
	switch status {
	case model.RunCompleted:
		return SuccessStyle
	case model.RunCompletedWithErrors:
		return WarningStyle
	default:
		return ErrorStyle
	}
}

// OutcomeIcon returns the marker shown next to a row outcome.
func OutcomeIcon(kind model.OutcomeKind) string {
	switch kind {
	case model.OutcomeCreated:
		return SuccessStyle.Render(SuccessIcon)
	case model.OutcomeSkipped:
		return WarningStyle.Render(SkipIcon)
	case model.OutcomeFailed:
		return ErrorStyle.Render(ErrorIcon)
	default:
		return SubtleStyle.Render(PauseIcon)
	}
}
