package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// ResetKind names a mode transition detected in the stream.
type ResetKind string

const (
	ResetCompact ResetKind = "compact"
	ResetPlan    ResetKind = "plan"
)

var approvalNoise = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)

// Classifier applies a compiled PatternTable. It holds no mutable state, so
// Classify is a pure function of its arguments and safe for concurrent use.
type Classifier struct {
	thresholds Thresholds

	exactNoise      map[string]struct{}
	garbage         []*regexp.Regexp
	toolVerbs       *regexp.Regexp
	toolTargets     *regexp.Regexp
	toolChatter     []*regexp.Regexp
	approvalPrompts []*regexp.Regexp
	approvalOptions []*regexp.Regexp

	markers      []string
	stopPrefixes []string
	stopPatterns []*regexp.Regexp
	stopTokens   []string
	compact      []*regexp.Regexp
	plan         []*regexp.Regexp
	history      []*regexp.Regexp
}

// New compiles table into a Classifier.
func New(table *PatternTable) (*Classifier, error) {
	c := &Classifier{
		thresholds:   table.Thresholds,
		exactNoise:   make(map[string]struct{}, len(table.ExactNoise)),
		markers:      table.NarrationMarkers,
		stopPrefixes: table.StopPrefixes,
		stopTokens:   table.StopTokens,
	}
	for _, token := range table.ExactNoise {
		c.exactNoise[strings.ToLower(token)] = struct{}{}
	}

	var err error
	if c.toolVerbs, err = regexp.Compile(table.ToolVerbs); err != nil {
		return nil, fmt.Errorf("invalid tool_verbs: %w", err)
	}
	if c.toolTargets, err = regexp.Compile(table.ToolTargets); err != nil {
		return nil, fmt.Errorf("invalid tool_targets: %w", err)
	}

	groups := []struct {
		field string
		exprs []string
		dst   *[]*regexp.Regexp
	}{
		{"garbage", table.Garbage, &c.garbage},
		{"tool_chatter", table.ToolChatter, &c.toolChatter},
		{"approval_prompts", table.ApprovalPrompts, &c.approvalPrompts},
		{"approval_options", table.ApprovalOptions, &c.approvalOptions},
		{"stop_patterns", table.StopPatterns, &c.stopPatterns},
		{"reset_markers.compact", table.ResetMarkers.Compact, &c.compact},
		{"reset_markers.plan", table.ResetMarkers.Plan, &c.plan},
		{"history_lines", table.HistoryLines, &c.history},
	}
	for _, g := range groups {
		compiled, err := compileAll(g.field, g.exprs)
		if err != nil {
			return nil, err
		}
		*g.dst = compiled
	}
	return c, nil
}

// NewDefault compiles the embedded pattern table.
func NewDefault() (*Classifier, error) {
	table, err := DefaultPatternTable()
	if err != nil {
		return nil, err
	}
	return New(table)
}

// Thresholds returns the length limits of the compiled table.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify returns the verdict for one normalized line. Rules are evaluated
// in priority order; the first match wins.
func (c *Classifier) Classify(line string, approval model.ApprovalState) model.Verdict {
	clean := strings.TrimSpace(line)
	length := utf8.RuneCountInString(clean)

	if length < c.thresholds.MinLength {
		return model.VerdictGarbage
	}
	if _, ok := c.exactNoise[strings.ToLower(clean)]; ok {
		return model.VerdictGarbage
	}
	if matchAny(c.garbage, clean) {
		return model.VerdictGarbage
	}
	// Approval dialogs emit more keystroke noise than normal output
	if approval.Active && length < c.thresholds.ApprovalShortLength && approvalNoise.MatchString(clean) {
		return model.VerdictGarbage
	}
	if c.isToolChatter(clean) {
		return model.VerdictToolChatter
	}
	if matchAny(c.approvalPrompts, clean) {
		return model.VerdictApprovalPrompt
	}
	if matchAny(c.approvalOptions, clean) {
		return model.VerdictApprovalOption
	}
	return model.VerdictContent
}

func (c *Classifier) isToolChatter(line string) bool {
	if c.toolVerbs.MatchString(line) && c.toolTargets.MatchString(line) {
		return true
	}
	return matchAny(c.toolChatter, line)
}

// Remainder strips a leading start-of-narration marker. ok is false when the
// line does not start with one.
func (c *Classifier) Remainder(line string) (string, bool) {
	clean := strings.TrimSpace(line)
	for _, marker := range c.markers {
		if strings.HasPrefix(clean, marker) {
			return strings.TrimSpace(strings.TrimPrefix(clean, marker)), true
		}
	}
	return "", false
}

// Marker returns the primary start-of-narration marker, or "" when the
// table defines none.
func (c *Classifier) Marker() string {
	if len(c.markers) == 0 {
		return ""
	}
	return c.markers[0]
}

// IsBoundary reports structural lines that end a narration block: status and
// box-drawing glyphs, token usage and interrupt hints.
func (c *Classifier) IsBoundary(line string) bool {
	clean := strings.TrimSpace(line)
	for _, prefix := range c.stopPrefixes {
		if strings.HasPrefix(clean, prefix) {
			return true
		}
	}
	return matchAny(c.stopPatterns, clean)
}

// IsStopToken reports whether line carries an in-band "stop speaking" token.
func (c *Classifier) IsStopToken(line string) bool {
	for _, token := range c.stopTokens {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}

// ResetMarker detects compact and plan-mode transitions.
func (c *Classifier) ResetMarker(line string) (ResetKind, bool) {
	if matchAny(c.compact, line) {
		return ResetCompact, true
	}
	if matchAny(c.plan, line) {
		return ResetPlan, true
	}
	return "", false
}

// IsHistoryLine reports conversation-history lines replayed after a compact.
func (c *Classifier) IsHistoryLine(line string) bool {
	return matchAny(c.history, strings.TrimSpace(line))
}
