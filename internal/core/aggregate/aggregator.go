package aggregate

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// DefaultNarrationMinLength is the minimum length a marker line's remainder
// must exceed to open a block.
const DefaultNarrationMinLength = 10

// Markers recognizes structural lines. *classify.Classifier implements it.
type Markers interface {
	// Remainder strips a start-of-narration marker; ok is false without one.
	Remainder(line string) (rest string, ok bool)
	// IsBoundary reports status glyphs, box drawing and usage/interrupt hints.
	IsBoundary(line string) bool
}

// Config tunes block detection; a zero NarrationMinLength takes the default.
type Config struct {
	NarrationMinLength int
	Source             model.SourceKind // stamped on produced utterances
}

// Aggregator groups a marker line and its continuation lines into one
// utterance. States are Idle (collecting == false) and Collecting.
//
// Aggregator is not safe for concurrent use; the pipeline serializes access.
type Aggregator struct {
	cfg     Config
	markers Markers

	buffer         []string
	collecting     bool
	lastBoundaryAt time.Time
}

// New creates an idle aggregator that recognizes markers and boundaries
// through markers.
func New(cfg Config, markers Markers) *Aggregator {
	if cfg.NarrationMinLength <= 0 {
		cfg.NarrationMinLength = DefaultNarrationMinLength
	}
	return &Aggregator{cfg: cfg, markers: markers}
}

// Feed consumes one normalized line. verdict is the classification of the
// line, or of its remainder when the line carries a marker. At most one
// utterance is returned.
func (a *Aggregator) Feed(line string, verdict model.Verdict, now time.Time) []model.Utterance {
	clean := strings.TrimSpace(line)
	rest, isMarker := a.markers.Remainder(clean)

	var out []model.Utterance
	if a.collecting {
		if !a.isStop(clean, verdict, isMarker) {
			a.buffer = append(a.buffer, clean)
			return nil
		}
		out = a.Flush(now)
		a.lastBoundaryAt = now
	}

	// A marker that closed the previous block is reprocessed as a start
	if isMarker && verdict == model.VerdictContent && utf8.RuneCountInString(rest) > a.cfg.NarrationMinLength {
		a.buffer = []string{rest}
		a.collecting = true
	}
	return out
}

func (a *Aggregator) isStop(line string, verdict model.Verdict, isMarker bool) bool {
	switch {
	case line == "":
		return true
	case isMarker:
		return true
	case verdict != model.VerdictContent:
		return true
	default:
		return a.markers.IsBoundary(line)
	}
}

// Flush closes the current block and returns it as an utterance. It returns
// nothing when Idle or when the buffer is empty.
func (a *Aggregator) Flush(now time.Time) []model.Utterance {
	if !a.collecting {
		return nil
	}
	text := strings.Join(a.buffer, " ")
	a.buffer = nil
	a.collecting = false
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []model.Utterance{model.NewUtterance(text, a.cfg.Source, now)}
}

// Remainder exposes the marker check used by Feed.
func (a *Aggregator) Remainder(line string) (string, bool) {
	return a.markers.Remainder(strings.TrimSpace(line))
}

// Reset discards the in-progress block without producing an utterance.
func (a *Aggregator) Reset() {
	a.buffer = nil
	a.collecting = false
}

func (a *Aggregator) Collecting() bool {
	return a.collecting
}

// LastBoundaryAt is when the most recent block was closed by a stop condition.
func (a *Aggregator) LastBoundaryAt() time.Time {
	return a.lastBoundaryAt
}
