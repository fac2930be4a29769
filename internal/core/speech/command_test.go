//go:build unix

package speech

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	assert.Equal(t, []string{"espeak", "-v", "en-us"}, ParseCommand("  espeak -v   en-us "))
	assert.Empty(t, ParseCommand(""))
}

func TestNewCommandSpeakerDefaults(t *testing.T) {
	s := NewCommandSpeaker(nil, nil, nil)
	assert.Equal(t, DefaultSpeakCommand(), s.SpeakCmd)
}

func TestCommandSpeakerAppendsText(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "spoken.txt")

	s := NewCommandSpeaker([]string{"sh", "-c", `printf '%s' "$1" > "$0"`, log}, nil, nil)
	require.NoError(t, s.Speak(context.Background(), "hello world"))

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestCommandSpeakerTextPlaceholder(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "spoken.txt")

	s := NewCommandSpeaker([]string{"sh", "-c", `printf '%s' "$0" > "$1"`, "{text}", log}, nil, nil)
	require.NoError(t, s.Speak(context.Background(), "placeholder text"))

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "placeholder text", string(data))
}

func TestCommandSpeakerTwoStage(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "played.txt")

	s := NewCommandSpeaker(nil,
		[]string{"sh", "-c", `printf '%s' "$0" > "$1"`, "{text}", "{out}"},
		[]string{"sh", "-c", `cat "$0" >> "$1"`, "{file}", log},
	)
	s.TempDir = dir
	require.NoError(t, s.Speak(context.Background(), "two stage"))

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "two stage", string(data))

	// The rendered audio file is removed after playback
	matches, err := filepath.Glob(filepath.Join(dir, "go-claude-voice-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCommandSpeakerTwoStageRequiresPlayer(t *testing.T) {
	s := NewCommandSpeaker(nil, []string{"true"}, nil)
	assert.ErrorIs(t, s.Speak(context.Background(), "x"), ErrEmptyCommand)
}

func TestCommandSpeakerFailure(t *testing.T) {
	s := NewCommandSpeaker([]string{"false"}, nil, nil)
	err := s.Speak(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestCommandSpeakerCancelKillsProcess(t *testing.T) {
	s := NewCommandSpeaker([]string{"sh", "-c", "sleep 30; true"}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err := s.Speak(ctx, "ignored")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandSpeakerDiscardsAudioCancelledBeforePlayback(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "played.txt")

	ctx, cancel := context.WithCancel(context.Background())
	s := NewCommandSpeaker(nil,
		[]string{"sh", "-c", `printf '%s' "$0" > "$1"; sleep 30`, "{text}", "{out}"},
		[]string{"sh", "-c", `cat "$0" >> "$1"`, "{file}", log},
	)
	s.TempDir = dir
	time.AfterFunc(100*time.Millisecond, cancel)

	err := s.Speak(ctx, "stale audio")
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(log)
	assert.True(t, os.IsNotExist(statErr))
}
