package pipeline

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/aggregate"
	"github.com/penwyp/go-claude-voice/internal/core/approval"
	"github.com/penwyp/go-claude-voice/internal/core/classify"
	"github.com/penwyp/go-claude-voice/internal/core/dedup"
	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/core/normalize"
	"github.com/penwyp/go-claude-voice/internal/util"
)

// DefaultHistorySkip is how long history lines are ignored after a compact.
const DefaultHistorySkip = 5 * time.Second

// focusReportingOff is emitted by the monitored CLI when an approval dialog
// takes over the terminal.
var focusReportingOff = []byte("\x1b[?1004l")

// Queue is the playback side of the pipeline. *speech.Queue implements it.
type Queue interface {
	Enqueue(model.Utterance)
	CancelAll()
}

type Config struct {
	ApprovalTimeout time.Duration
	Dedup           dedup.Config
	HistorySkip     time.Duration
	AnnouncePrompts bool
}

// Action is what the pipeline did with one line.
type Action int

const (
	ActionClassified Action = iota
	ActionStop
	ActionReset
	ActionHistorySkip
	ActionRepeatedLine
)

func (a Action) String() string {
	switch a {
	case ActionClassified:
		return "classified"
	case ActionStop:
		return "stop"
	case ActionReset:
		return "reset"
	case ActionHistorySkip:
		return "history"
	case ActionRepeatedLine:
		return "repeat"
	default:
		return "unknown"
	}
}

// Decision describes how one line was handled. Verdict is only meaningful
// for ActionClassified.
type Decision struct {
	Line     string
	Action   Action
	Verdict  model.Verdict
	Approval bool
}

type Option func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithObserver registers a callback for every utterance accepted for speech.
func WithObserver(fn func(model.Utterance)) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, fn) }
}

// WithDecisionHook registers a callback for every processed line.
func WithDecisionHook(fn func(Decision)) Option {
	return func(p *Pipeline) { p.onDecision = fn }
}

// Pipeline owns the shared state bundle: normalizer carry, approval context,
// aggregation buffer and dedup cache. Every entry point takes the same
// mutex, so each chunk, line or text block is processed as one serialized
// event. Lock order is pipeline, then queue.
type Pipeline struct {
	mu sync.Mutex

	cfg        Config
	classifier *classify.Classifier
	queue      Queue

	normalizer *normalize.Normalizer
	tracker    *approval.Tracker
	aggregator *aggregate.Aggregator
	dedup      *dedup.Cache

	lastLine         string
	historySkipUntil time.Time
	focusTail        []byte // raw bytes that may start a split focusReportingOff

	now        func() time.Time
	observers  []func(model.Utterance)
	onDecision func(Decision)
}

func New(cfg Config, classifier *classify.Classifier, queue Queue, opts ...Option) *Pipeline {
	if cfg.HistorySkip <= 0 {
		cfg.HistorySkip = DefaultHistorySkip
	}
	p := &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		queue:      queue,
		normalizer: &normalize.Normalizer{},
		tracker:    approval.NewTracker(cfg.ApprovalTimeout),
		aggregator: aggregate.New(aggregate.Config{
			NarrationMinLength: classifier.Thresholds().NarrationMinLength,
		}, classifier),
		dedup: dedup.New(cfg.Dedup),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle dispatches a raw event by source kind.
func (p *Pipeline) Handle(ev model.RawEvent) {
	switch ev.SourceKind {
	case model.SourceStructured:
		p.HandleText(string(ev.Payload))
	default:
		p.HandleChunk(ev.Payload)
	}
}

// HandleChunk feeds raw terminal bytes. Complete lines are processed; the
// trailing fragment waits for the next chunk or Finish.
func (p *Pipeline) HandleChunk(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.sawFocusReportingOff(chunk) {
		p.tracker.Activate(now)
		util.LogDebug("Approval context activated by focus reporting change")
	}
	for _, line := range p.normalizer.Write(chunk) {
		p.processLocked(line, model.SourceTerminal, now)
	}
}

// sawFocusReportingOff looks for the sequence in chunk and across the
// boundary with the previous chunk.
func (p *Pipeline) sawFocusReportingOff(chunk []byte) bool {
	window := append(p.focusTail, chunk...)
	found := bytes.Contains(window, focusReportingOff)

	keep := len(focusReportingOff) - 1
	if len(window) < keep {
		keep = len(window)
	}
	p.focusTail = append([]byte(nil), window[len(window)-keep:]...)
	return found
}

// HandleLine processes one terminal line that may still carry escape
// sequences.
func (p *Pipeline) HandleLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processLocked(normalize.Clean(line), model.SourceTerminal, p.now())
}

// HandleText processes one structured text block. Each paragraph is
// narrated as its own block. The narration marker goes on the first line
// that can open a block, so a short opener or a heading does not silence
// the rest of the paragraph.
func (p *Pipeline) HandleText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	marker := p.classifier.Marker()
	for _, paragraph := range Paragraphs(text) {
		for _, line := range paragraph {
			if marker != "" && !p.aggregator.Collecting() && !p.classifier.IsBoundary(line) {
				line = marker + " " + line
			}
			p.processLocked(line, model.SourceStructured, now)
		}
		p.processLocked("", model.SourceStructured, now)
	}
}

// Finish flushes the trailing partial line and any open narration block.
// Call it once the source reaches end of stream.
func (p *Pipeline) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, tail := range p.normalizer.Close() {
		p.processLocked(tail, model.SourceTerminal, now)
	}
	p.focusTail = nil
	p.submitLocked(p.aggregator.Flush(now), model.SourceTerminal, now)
}

// Stop silences speech: the queue is cancelled and the block being
// collected is dropped. Safe to call from signal handlers.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pipeline) stopLocked() {
	p.aggregator.Reset()
	p.queue.CancelAll()
}

// ApprovalState returns the approval context as of now.
func (p *Pipeline) ApprovalState() model.ApprovalState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.State(p.now())
}

func (p *Pipeline) processLocked(line string, source model.SourceKind, now time.Time) {
	if p.classifier.IsStopToken(line) {
		util.LogInfo("Stop token received, cancelling speech")
		p.stopLocked()
		p.decide(Decision{Line: line, Action: ActionStop})
		return
	}

	if kind, ok := p.classifier.ResetMarker(line); ok {
		p.submitLocked(p.aggregator.Flush(now), source, now)
		p.tracker.Reset()
		p.dedup.Purge()
		if kind == classify.ResetCompact {
			p.historySkipUntil = now.Add(p.cfg.HistorySkip)
		}
		util.LogDebugf("Mode reset (%s): approval cleared, dedup purged", kind)
		p.decide(Decision{Line: line, Action: ActionReset})
		return
	}

	if now.Before(p.historySkipUntil) && p.classifier.IsHistoryLine(line) {
		p.decide(Decision{Line: line, Action: ActionHistorySkip})
		return
	}

	trimmed := strings.TrimSpace(line)
	if trimmed != "" {
		if trimmed == p.lastLine {
			p.decide(Decision{Line: line, Action: ActionRepeatedLine})
			return
		}
		p.lastLine = trimmed
	}

	subject := trimmed
	if rest, ok := p.classifier.Remainder(trimmed); ok {
		subject = rest
	}
	verdict := p.classifier.Classify(subject, p.tracker.State(now))
	state := p.tracker.Observe(verdict, now)
	p.decide(Decision{Line: line, Action: ActionClassified, Verdict: verdict, Approval: state.Active})

	p.submitLocked(p.aggregator.Feed(trimmed, verdict, now), source, now)

	if verdict == model.VerdictApprovalPrompt && p.cfg.AnnouncePrompts {
		p.submitLocked([]model.Utterance{model.NewUtterance(subject, source, now)}, source, now)
	}
}

func (p *Pipeline) submitLocked(utterances []model.Utterance, source model.SourceKind, now time.Time) {
	for _, u := range utterances {
		u.Source = source
		if !p.dedup.Accept(u, now) {
			util.LogDebugf("Suppressed duplicate: %s", util.Preview(u.Text, 60))
			continue
		}
		util.LogDebugf("Queued utterance %s: %s", u.ID, util.Preview(u.Text, 60))
		p.queue.Enqueue(u)
		for _, fn := range p.observers {
			fn(u)
		}
	}
}

func (p *Pipeline) decide(d Decision) {
	if p.onDecision != nil {
		p.onDecision(d)
	}
}
