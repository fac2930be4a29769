package voice

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-voice/internal/data/store"
	"github.com/penwyp/go-claude-voice/internal/testing/fixtures"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSpeaker) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func TestNewOrchestratorRejectsInvalidConfig(t *testing.T) {
	_, err := NewOrchestrator(&VoiceConfig{DedupMode: "bogus"}, &recordingSpeaker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewOrchestratorRejectsMissingPatterns(t *testing.T) {
	config := &VoiceConfig{PatternsFile: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := NewOrchestrator(config, &recordingSpeaker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern table")
}

func TestOrchestratorFeedsLinesToSpeaker(t *testing.T) {
	speaker := &recordingSpeaker{}
	o, err := NewOrchestrator(&VoiceConfig{}, speaker)
	require.NoError(t, err)
	defer o.Close()

	p := o.Pipeline()
	p.HandleLine("⏺ I am updating the configuration loader now")
	p.HandleLine("so that it reads the new defaults.")
	p.HandleLine("")

	assert.Eventually(t, func() bool {
		return len(speaker.spoken()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "I am updating the configuration loader now so that it reads the new defaults.", speaker.spoken()[0])
}

func TestOrchestratorRunStructuredFromTranscripts(t *testing.T) {
	dir := t.TempDir()
	gen := fixtures.NewTranscriptGenerator(dir)
	require.NoError(t, gen.Append("project", "session",
		gen.User("session", time.Now().Add(-2*time.Minute), "make the errors better"),
		gen.ToolUse("session", time.Now().Add(-90*time.Second), "Edit"),
		gen.Assistant("session", time.Now().Add(-time.Minute), "I refactored the parser so errors carry positions."),
	))

	speaker := &recordingSpeaker{}
	o, err := NewOrchestrator(&VoiceConfig{
		Store:        store.Options{Kind: store.KindTranscripts, Dir: dir},
		PollInterval: 20 * time.Millisecond,
		FromStart:    true,
	}, speaker)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunStructured(ctx) }()

	assert.Eventually(t, func() bool {
		for _, text := range speaker.spoken() {
			if strings.Contains(text, "refactored the parser") {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunStructured did not return after cancel")
	}
}

func TestOrchestratorRunStructuredSkipsHistoryByDefault(t *testing.T) {
	dir := t.TempDir()
	gen := fixtures.NewTranscriptGenerator(dir)
	require.NoError(t, gen.Append("project", "session",
		gen.Assistant("session", time.Now().Add(-time.Hour), "This message was written before the watcher started."),
	))

	speaker := &recordingSpeaker{}
	o, err := NewOrchestrator(&VoiceConfig{
		Store:        store.Options{Kind: store.KindTranscripts, Dir: dir},
		PollInterval: 20 * time.Millisecond,
	}, speaker)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, o.RunStructured(ctx))
	assert.Empty(t, speaker.spoken())
}

func TestOrchestratorRunStructuredUnknownStore(t *testing.T) {
	o, err := NewOrchestrator(&VoiceConfig{Store: store.Options{Kind: "mysql"}}, &recordingSpeaker{})
	require.NoError(t, err)

	err = o.RunStructured(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnknownKind)
}
