package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// PatternTableVersion is the schema version this build understands.
const PatternTableVersion = 1

// ErrUnsupportedVersion is returned for pattern tables written for another schema.
var ErrUnsupportedVersion = errors.New("unsupported pattern table version")

//go:embed patterns.yaml
var defaultPatterns []byte

// Thresholds holds the length limits used while classifying and aggregating.
type Thresholds struct {
	MinLength           int `yaml:"min_length"`
	ApprovalShortLength int `yaml:"approval_short_length"`
	NarrationMinLength  int `yaml:"narration_min_length"`
}

// ResetMarkers lists the markers for mode transitions that clear approval and dedup state.
type ResetMarkers struct {
	Compact []string `yaml:"compact"`
	Plan    []string `yaml:"plan"`
}

// PatternTable is the data-driven rule set. It is kept separate from the
// classification logic so it can be versioned and overridden from a file.
type PatternTable struct {
	Version          int          `yaml:"version"`
	Thresholds       Thresholds   `yaml:"thresholds"`
	ExactNoise       []string     `yaml:"exact_noise"`
	Garbage          []string     `yaml:"garbage"`
	ToolVerbs        string       `yaml:"tool_verbs"`
	ToolTargets      string       `yaml:"tool_targets"`
	ToolChatter      []string     `yaml:"tool_chatter"`
	ApprovalPrompts  []string     `yaml:"approval_prompts"`
	ApprovalOptions  []string     `yaml:"approval_options"`
	NarrationMarkers []string     `yaml:"narration_markers"`
	StopPrefixes     []string     `yaml:"stop_prefixes"`
	StopPatterns     []string     `yaml:"stop_patterns"`
	StopTokens       []string     `yaml:"stop_tokens"`
	ResetMarkers     ResetMarkers `yaml:"reset_markers"`
	HistoryLines     []string     `yaml:"history_lines"`
}

// DefaultPatternTable returns the embedded table.
func DefaultPatternTable() (*PatternTable, error) {
	return ParsePatternTable(defaultPatterns)
}

// LoadPatternTable reads a table from a YAML file.
func LoadPatternTable(path string) (*PatternTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern table %s: %w", path, err)
	}
	return ParsePatternTable(data)
}

// ParsePatternTable decodes and validates a YAML table. Missing thresholds
// fall back to the defaults.
func ParsePatternTable(data []byte) (*PatternTable, error) {
	var table PatternTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse pattern table: %w", err)
	}
	if table.Version != PatternTableVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, table.Version, PatternTableVersion)
	}
	if table.Thresholds.MinLength == 0 {
		table.Thresholds.MinLength = 3
	}
	if table.Thresholds.ApprovalShortLength == 0 {
		table.Thresholds.ApprovalShortLength = 20
	}
	if table.Thresholds.NarrationMinLength == 0 {
		table.Thresholds.NarrationMinLength = 10
	}
	return &table, nil
}

// compileAll compiles every expression, naming the field on failure.
func compileAll(field string, exprs []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s[%d] %q: %w", field, i, expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
