package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Placeholders substituted in command arguments.
const (
	PlaceholderText = "{text}"
	PlaceholderOut  = "{out}"
	PlaceholderFile = "{file}"
)

// ErrEmptyCommand is returned when no speech command is configured.
var ErrEmptyCommand = errors.New("empty speech command")

// DefaultSpeakCommand returns the platform text-to-speech command.
func DefaultSpeakCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"say"}
	}
	return []string{"espeak"}
}

// ParseCommand splits a command line on whitespace. Quoting is not supported.
func ParseCommand(s string) []string {
	return strings.Fields(s)
}

// CommandSpeaker runs external programs to speak text.
//
// In single-stage mode Speak runs SpeakCmd; the text replaces {text} or is
// appended as the last argument. In two-stage mode SynthCmd renders audio
// into {out} and PlayerCmd plays {file}. Audio rendered for a playback that
// was cancelled in between is deleted without being played.
type CommandSpeaker struct {
	SpeakCmd  []string
	SynthCmd  []string
	PlayerCmd []string
	TempDir   string
	Extension string // audio file extension for two-stage mode, e.g. ".wav"
}

func NewCommandSpeaker(speakCmd, synthCmd, playerCmd []string) *CommandSpeaker {
	if len(speakCmd) == 0 && len(synthCmd) == 0 {
		speakCmd = DefaultSpeakCommand()
	}
	return &CommandSpeaker{
		SpeakCmd:  speakCmd,
		SynthCmd:  synthCmd,
		PlayerCmd: playerCmd,
		Extension: ".wav",
	}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if len(s.SynthCmd) > 0 {
		return s.speakTwoStage(ctx, text)
	}
	if len(s.SpeakCmd) == 0 {
		return ErrEmptyCommand
	}
	args := expand(s.SpeakCmd, PlaceholderText, text)
	if !contains(s.SpeakCmd, PlaceholderText) {
		args = append(args, text)
	}
	return run(ctx, args)
}

func (s *CommandSpeaker) speakTwoStage(ctx context.Context, text string) error {
	if len(s.PlayerCmd) == 0 {
		return fmt.Errorf("%w: synth command set without player command", ErrEmptyCommand)
	}

	f, err := os.CreateTemp(s.TempDir, "go-claude-voice-*"+s.Extension)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	out := f.Name()
	f.Close()
	defer os.Remove(out)

	synth := expand(s.SynthCmd, PlaceholderOut, out, PlaceholderText, text)
	if err := run(ctx, synth); err != nil {
		return fmt.Errorf("failed to synthesize: %w", err)
	}
	// Cancelled while synthesizing: never play stale audio
	if err := ctx.Err(); err != nil {
		return err
	}

	player := expand(s.PlayerCmd, PlaceholderFile, out)
	if !contains(s.PlayerCmd, PlaceholderFile) {
		player = append(player, out)
	}
	if err := run(ctx, player); err != nil {
		return fmt.Errorf("failed to play %s: %w", filepath.Base(out), err)
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	killProcessGroupOnCancel(cmd)
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

// expand substitutes placeholder/value pairs in a single pass, so
// placeholders appearing inside a substituted value are left alone.
func expand(args []string, pairs ...string) []string {
	r := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = r.Replace(arg)
	}
	return out
}

func contains(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
