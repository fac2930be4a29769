package util

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Terminal colors used by the analyze report
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// DisplayWidth returns the number of terminal cells text occupies,
// accounting for wide runes and emoji.
func DisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// Preview flattens text to one line and truncates it to width cells,
// marking the cut with an ellipsis. Used for log lines and reports.
func Preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if width <= 0 || runewidth.StringWidth(flat) <= width {
		return flat
	}
	return runewidth.Truncate(flat, width, "…")
}

// PadRight pads text with spaces to width cells. Longer text is truncated.
func PadRight(text string, width int) string {
	text = Preview(text, width)
	return runewidth.FillRight(text, width)
}

// Colorize wraps text in a color sequence when enabled.
func Colorize(text, color string, enabled bool) string {
	if !enabled || color == "" {
		return text
	}
	return fmt.Sprintf("%s%s%s", color, text, ColorReset)
}

// FormatSectionTitle renders a bold cyan section heading.
func FormatSectionTitle(title string, color bool) string {
	return Colorize(title, ColorBold+ColorCyan, color)
}
