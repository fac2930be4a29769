package pipeline

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/classify"
	"github.com/penwyp/go-claude-voice/internal/core/dedup"
	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu         sync.Mutex
	utterances []model.Utterance
	cancels    int
}

func (q *recordingQueue) Enqueue(u model.Utterance) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.utterances = append(q.utterances, u)
}

func (q *recordingQueue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancels++
}

func (q *recordingQueue) texts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, u := range q.utterances {
		out = append(out, u.Text)
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	pipeline  *Pipeline
	queue     *recordingQueue
	clock     *fakeClock
	decisions []Decision
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	c, err := classify.NewDefault()
	require.NoError(t, err)

	f := &fixture{
		queue: &recordingQueue{},
		clock: &fakeClock{t: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{
		WithClock(f.clock.Now),
		WithDecisionHook(func(d Decision) { f.decisions = append(f.decisions, d) }),
	}, opts...)
	f.pipeline = New(cfg, c, f.queue, opts...)
	return f
}

func (f *fixture) lines(lines ...string) {
	for _, line := range lines {
		f.pipeline.HandleLine(line)
	}
}

func (f *fixture) lastDecision() Decision {
	return f.decisions[len(f.decisions)-1]
}

const terminalStream = "\x1b[2K\x1b[1G⏺ I found the bug in the parser\r\n" +
	"  It drops the last token\r\n" +
	"\r\n" +
	"\x1b[38;5;174m✻ Thinking… (3s · ↑ 1.2k tokens · esc to interrupt)\x1b[39m\r\n" +
	"⏺ Update Todos\r\n" +
	"  ⎿  ☒ Fix the parser\r\n" +
	"⏺ Now writing a regression test for it\r\n" +
	"\x1b[?25h"

func TestPipelineTerminalRoundTrip(t *testing.T) {
	want := []string{
		"I found the bug in the parser It drops the last token",
		"Now writing a regression test for it",
	}

	for _, size := range []int{1, 3, 7, 64, len(terminalStream)} {
		f := newFixture(t, Config{})
		data := []byte(terminalStream)
		for len(data) > 0 {
			n := size
			if n > len(data) {
				n = len(data)
			}
			f.pipeline.Handle(model.RawEvent{Payload: data[:n], SourceKind: model.SourceTerminal})
			data = data[n:]
		}
		f.pipeline.Finish()

		assert.Equal(t, want, f.queue.texts(), "chunk size %d", size)
		for _, u := range f.queue.utterances {
			assert.Equal(t, model.SourceTerminal, u.Source)
		}
	}
}

func TestPipelineFinishFlushesPartialLine(t *testing.T) {
	f := newFixture(t, Config{})

	f.pipeline.HandleChunk([]byte("⏺ Exiting in the middle of a line"))
	assert.Empty(t, f.queue.texts())

	f.pipeline.Finish()
	assert.Equal(t, []string{"Exiting in the middle of a line"}, f.queue.texts())
}

func TestPipelineStopToken(t *testing.T) {
	f := newFixture(t, Config{})

	f.lines("⏺ This block is being collected", "and keeps going")
	f.lines("> //stfu")
	assert.Equal(t, 1, f.queue.cancels)
	assert.Equal(t, ActionStop, f.lastDecision().Action)

	// The discarded block is never spoken
	f.lines("")
	f.pipeline.Finish()
	assert.Empty(t, f.queue.texts())

	f.pipeline.Stop()
	assert.Equal(t, 2, f.queue.cancels)
}

func TestPipelineDedupAndModeReset(t *testing.T) {
	f := newFixture(t, Config{Dedup: dedup.Config{Mode: dedup.ModeSession}})

	f.lines("⏺ Here is the repeated answer", "✻ Thinking")
	f.lines("⏺ Here is the repeated answer", "✻ Thinking")
	assert.Equal(t, []string{"Here is the repeated answer"}, f.queue.texts())

	f.lines("> /compact")
	assert.Equal(t, ActionReset, f.lastDecision().Action)

	f.lines("Human: what was the answer?")
	assert.Equal(t, ActionHistorySkip, f.lastDecision().Action)

	f.lines("⏺ Here is the repeated answer", "✻ Thinking")
	assert.Equal(t, []string{"Here is the repeated answer", "Here is the repeated answer"}, f.queue.texts())

	// History lines are only skipped right after a compact
	f.clock.Advance(6 * time.Second)
	f.lines("Human: what was the answer?")
	assert.Equal(t, ActionClassified, f.lastDecision().Action)
}

func TestPipelineResetFlushesOpenBlock(t *testing.T) {
	f := newFixture(t, Config{})

	f.lines("⏺ Summarizing before the compact", "/compact")
	assert.Equal(t, []string{"Summarizing before the compact"}, f.queue.texts())
}

func TestPipelineRepeatedLinesSkipped(t *testing.T) {
	f := newFixture(t, Config{})

	f.lines("⏺ Redrawn narration line here", "Redrawn narration line here")
	assert.Equal(t, ActionClassified, f.lastDecision().Action)

	f.lines("continuation", "continuation")
	assert.Equal(t, ActionRepeatedLine, f.lastDecision().Action)

	f.pipeline.Finish()
	assert.Equal(t, []string{"Redrawn narration line here Redrawn narration line here continuation"}, f.queue.texts())
}

func TestPipelineApprovalContext(t *testing.T) {
	f := newFixture(t, Config{ApprovalTimeout: 10 * time.Second})

	f.lines("Esc to cancel")
	assert.Equal(t, model.VerdictContent, f.lastDecision().Verdict)

	f.pipeline.HandleChunk([]byte("\x1b[?1004lEsc to cancel now\n"))
	assert.True(t, f.lastDecision().Approval)
	assert.Equal(t, model.VerdictGarbage, f.lastDecision().Verdict)
	assert.True(t, f.pipeline.ApprovalState().Active)

	f.clock.Advance(11 * time.Second)
	assert.False(t, f.pipeline.ApprovalState().Active)
	f.lines("Esc to cancel again")
	assert.Equal(t, model.VerdictContent, f.lastDecision().Verdict)
}

func TestPipelineApprovalPromptAnnouncement(t *testing.T) {
	f := newFixture(t, Config{AnnouncePrompts: true})

	f.lines("⏺ I will change main.go so the tests pass", "Do you want to make this edit to main.go?", "❯ 1. Yes")
	assert.Equal(t, []string{
		"I will change main.go so the tests pass",
		"Do you want to make this edit to main.go?",
	}, f.queue.texts())
	assert.True(t, f.pipeline.ApprovalState().Active)

	quiet := newFixture(t, Config{AnnouncePrompts: false})
	quiet.lines("Do you want to make this edit to main.go?")
	assert.Empty(t, quiet.queue.texts())
	assert.True(t, quiet.pipeline.ApprovalState().Active)
}

func TestPipelineStructuredText(t *testing.T) {
	var observed []string
	f := newFixture(t, Config{}, WithObserver(func(u model.Utterance) {
		observed = append(observed, u.Text)
	}))

	text := "First paragraph here is long.\nContinues here.\n\n```go\nfunc main() {}\n```\n\nSecond paragraph is here too."
	f.pipeline.Handle(model.RawEvent{Payload: []byte(text), SourceKind: model.SourceStructured})

	want := []string{"First paragraph here is long. Continues here.", "Second paragraph is here too."}
	assert.Equal(t, want, f.queue.texts())
	assert.Equal(t, want, observed)
	for _, u := range f.queue.utterances {
		assert.Equal(t, model.SourceStructured, u.Source)
	}
}

func TestPipelineStructuredTextSkipsShortAndChatter(t *testing.T) {
	f := newFixture(t, Config{})

	f.pipeline.HandleText("Done.\n\nRunning command: go test ./...\n\nAll the tests pass on my machine now.")
	assert.Equal(t, []string{"All the tests pass on my machine now."}, f.queue.texts())
}

func TestPipelineStructuredTextReseedsAfterIneligibleOpener(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "short opener",
			text: "Done.\nThe build is green and every check passes now.",
			want: []string{"The build is green and every check passes now."},
		},
		{
			name: "heading opener",
			text: "## Summary\nThe cache layer now uses a write-ahead log.",
			want: []string{"The cache layer now uses a write-ahead log."},
		},
		{
			name: "tool chatter opener",
			text: "Running command: go test ./...\nAll the tests pass on my machine now.",
			want: []string{"All the tests pass on my machine now."},
		},
		{
			name: "heading inside a paragraph",
			text: "The first part is explained here.\n## Details\nThe second part follows below.",
			want: []string{"The first part is explained here.", "The second part follows below."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.pipeline.HandleText(tt.text)
			assert.Equal(t, tt.want, f.queue.texts())
		})
	}
}

func TestPipelineFocusReportingOffSplitAcrossChunks(t *testing.T) {
	stream := []byte("\x1b[?1004lEsc to cancel now\n")
	for split := 1; split < len(focusReportingOff); split++ {
		f := newFixture(t, Config{ApprovalTimeout: 10 * time.Second})
		f.pipeline.HandleChunk(stream[:split])
		f.pipeline.HandleChunk(stream[split:])
		assert.True(t, f.pipeline.ApprovalState().Active, "split at %d", split)
	}

	f := newFixture(t, Config{ApprovalTimeout: 10 * time.Second})
	for i := range stream {
		f.pipeline.HandleChunk(stream[i : i+1])
	}
	assert.True(t, f.pipeline.ApprovalState().Active, "byte by byte")

	quiet := newFixture(t, Config{ApprovalTimeout: 10 * time.Second})
	quiet.pipeline.HandleChunk([]byte("\x1b[?10"))
	quiet.pipeline.HandleChunk([]byte("05l plain output\n"))
	assert.False(t, quiet.pipeline.ApprovalState().Active)
}

func TestParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{"single", "one line", [][]string{{"one line"}}},
		{"multi line", "a\n  b  \n", [][]string{{"a", "b"}}},
		{"blank separated", "a\n\n \t\nb\r\n\r\nc", [][]string{{"a"}, {"b"}, {"c"}}},
		{"fenced code", "before\n```\ncode\n```\nafter", [][]string{{"before"}, {"after"}}},
		{"unterminated fence", "before\n```sh\nrm -rf /", [][]string{{"before"}}},
		{"empty", "  \n\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paragraphs(tt.text))
		})
	}
}

func TestActionString(t *testing.T) {
	for _, a := range []Action{ActionClassified, ActionStop, ActionReset, ActionHistorySkip, ActionRepeatedLine} {
		assert.False(t, strings.EqualFold(a.String(), "unknown"))
	}
	assert.Equal(t, "unknown", Action(99).String())
}
