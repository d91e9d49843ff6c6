// Package tui renders the terminal views: the digest preview and the
// interactive authorization prompt.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorCyan    = lipgloss.Color("86")
	ColorGreen   = lipgloss.Color("78")
	ColorYellow  = lipgloss.Color("221")
	ColorRed     = lipgloss.Color("196")
	ColorMagenta = lipgloss.Color("213")
	ColorGray    = lipgloss.Color("245")
	ColorDimGray = lipgloss.Color("239")
)

// Bucket header colors, keyed like digest.Digest.Counts
var BucketColors = map[string]lipgloss.Color{
	"today": ColorMagenta,
	"week":  ColorCyan,
	"nodue": ColorGray,
}

// Common styles
var (
	// Title style
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	// Subtitle/dim text
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	// Dim text style
	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	// Border box style
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(1, 2)

	// URL box in the auth prompt
	LinkBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorDimGray).
			Foreground(ColorCyan).
			Padding(0, 1)

	// Help key style
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	// Help text style
	HelpTextStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	// Error style
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	// Success style
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	// Warning style
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)
)

// Status indicators
const (
	IndicatorDone     = "✓"
	IndicatorFailed   = "✗"
	IndicatorSkipped  = "○"
	IndicatorSelected = "❯"
)

// GetBucketStyle returns the header style for a bucket key.
func GetBucketStyle(bucket string) lipgloss.Style {
	color, ok := BucketColors[bucket]
	if !ok {
		color = ColorGray
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}

// renderHelp renders "key action" pairs separated by dots.
func renderHelp(pairs ...string) string {
	out := ""
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			out += DimStyle.Render(" • ")
		}
		out += HelpKeyStyle.Render(pairs[i]) + " " + HelpTextStyle.Render(pairs[i+1])
	}
	return out
}
