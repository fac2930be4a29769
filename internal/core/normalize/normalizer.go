package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// Terminal escape sequence patterns
var (
	csiSequence     = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
	c1CSISequence   = regexp.MustCompile(`\x{9b}[0-?]*[ -/]*[@-~]`)
	oscSequence     = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\?)`)
	stringSequence  = regexp.MustCompile(`\x1b[PX^_][^\x1b]*(?:\x1b\\?)`)
	charsetSequence = regexp.MustCompile(`\x1b[()*+][0-9A-Za-z]`)
	shortEscape     = regexp.MustCompile(`\x1b[ -/]*[0-~]`)
	// CSI remnants whose ESC byte was lost upstream, e.g. "[2K" or "[?25l"
	orphanCSI = regexp.MustCompile(`\[\??\d+(?:;\d+)*[A-Za-z]`)
)

// Strip removes terminal control sequences and unprintable characters from s.
// Newlines, carriage returns and tabs survive so callers can still split on them.
func Strip(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	s = oscSequence.ReplaceAllString(s, "")
	s = stringSequence.ReplaceAllString(s, "")
	s = csiSequence.ReplaceAllString(s, "")
	s = c1CSISequence.ReplaceAllString(s, "")
	s = charsetSequence.ReplaceAllString(s, "")
	s = shortEscape.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func isControl(r rune) bool {
	return r != '\n' && r != '\t' && unicode.IsControl(r)
}

// Clean turns one raw line into a normalized line: escape sequences removed,
// carriage-return overdraw resolved to the last drawn segment, no control
// characters other than tab.
func Clean(raw string) string {
	line := strings.ToValidUTF8(raw, "")
	line = Strip(line)
	line = strings.TrimRight(line, "\r")
	if strings.Contains(line, "\r") {
		segments := strings.Split(line, "\r")
		line = ""
		for i := len(segments) - 1; i >= 0; i-- {
			if strings.TrimSpace(segments[i]) != "" {
				line = segments[i]
				break
			}
		}
	}
	return orphanCSI.ReplaceAllString(line, "")
}

// Normalize appends chunk to carry, returns every complete line (cleaned) and
// the trailing incomplete fragment as the new carry. The carry stays raw so an
// escape sequence or multi-byte rune split across chunks is reassembled before
// it is interpreted.
func Normalize(chunk []byte, carry string) ([]string, string) {
	data := carry + string(chunk)
	idx := strings.LastIndexByte(data, '\n')
	if idx < 0 {
		return nil, data
	}

	complete := data[:idx]
	newCarry := data[idx+1:]

	raws := strings.Split(complete, "\n")
	lines := make([]string, 0, len(raws))
	for _, raw := range raws {
		lines = append(lines, Clean(raw))
	}
	return lines, newCarry
}

// Flush returns the cleaned carry as a final line at end of stream.
// ok is false when the carry holds nothing printable.
func Flush(carry string) (string, bool) {
	if carry == "" {
		return "", false
	}
	line := Clean(carry)
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// Normalizer is a stateful wrapper around Normalize for a single stream.
type Normalizer struct {
	carry string
}

// Write feeds a chunk and returns the lines it completed.
func (n *Normalizer) Write(chunk []byte) []string {
	var lines []string
	lines, n.carry = Normalize(chunk, n.carry)
	return lines
}

// Close flushes the pending fragment, if any, and resets the normalizer.
func (n *Normalizer) Close() []string {
	line, ok := Flush(n.carry)
	n.carry = ""
	if !ok {
		return nil
	}
	return []string{line}
}

// Pending reports the raw fragment waiting for its newline.
func (n *Normalizer) Pending() string {
	return n.carry
}
