package pipeline

import (
	"regexp"
	"strings"
)

var (
	fencedCode     = regexp.MustCompile("(?s)```.*?(?:```|$)")
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
)

// Paragraphs removes fenced code blocks from a structured text block and
// splits the rest on blank lines. Each paragraph's lines are trimmed; empty
// paragraphs are dropped.
func Paragraphs(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = fencedCode.ReplaceAllString(text, "\n\n")

	var out [][]string
	for _, chunk := range paragraphBreak.Split(text, -1) {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, lines)
		}
	}
	return out
}
