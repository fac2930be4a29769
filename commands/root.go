package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/penwyp/go-claude-voice/internal/application/voice"
	"github.com/penwyp/go-claude-voice/internal/core/approval"
	"github.com/penwyp/go-claude-voice/internal/core/dedup"
	"github.com/penwyp/go-claude-voice/internal/core/speech"
	"github.com/penwyp/go-claude-voice/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug bool

	// Monitored program
	command string

	// Speech backend
	speakCmd  string
	synthCmd  string
	playerCmd string

	// Filtering
	patternsFile      string
	approvalTimeout   time.Duration
	dedupMode         string
	dedupWindow       time.Duration
	dedupMax          int
	noAnnouncePrompts bool

	// Integration
	natsURL string

	rootCmd = &cobra.Command{
		Use:   "go-claude-voice [flags] [-- command args...]",
		Short: "Speak what Claude Code is saying",
		Long: `go-claude-voice runs Claude Code inside a pseudo-terminal and reads its narration aloud.

Terminal output is cleaned of escape sequences, spinners, tool chatter and approval
dialogs; the remaining narration is grouped into utterances and spoken one at a time.
Everything after -- is passed to the monitored command.

Examples:
  go-claude-voice                                     # Run claude and speak its narration
  go-claude-voice -- --resume                         # Pass flags through to claude
  go-claude-voice --speak-cmd "espeak -s 170"         # Use a custom speech command
  go-claude-voice --synth-cmd "piper -f {out}" --player-cmd "aplay {file}"
  go-claude-voice --dedup-mode session                # Never repeat a sentence in this session
  go-claude-voice watch --source transcripts          # Narrate from transcript files instead`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTerminal,
	}
)

const (
	defaultLogFile = "~/.go-claude-voice/logs/voice.log"
	defaultCommand = "claude"
)

// ExitError carries the monitored command's non-zero exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

func init() {
	rootCmd.Flags().SetInterspersed(false)

	// Monitored program
	rootCmd.Flags().StringVar(&command, "command", defaultCommand,
		"Program to run and narrate")

	// Speech backend
	rootCmd.PersistentFlags().StringVar(&speakCmd, "speak-cmd", "",
		"Speech command; {text} is replaced by the utterance (default say/espeak)")
	rootCmd.PersistentFlags().StringVar(&synthCmd, "synth-cmd", "",
		"Synthesis command writing audio to {out}; requires --player-cmd")
	rootCmd.PersistentFlags().StringVar(&playerCmd, "player-cmd", "",
		"Playback command for the file at {file}")

	// Filtering
	rootCmd.PersistentFlags().StringVar(&patternsFile, "patterns", "",
		"YAML pattern table overriding the built-in one")
	rootCmd.PersistentFlags().DurationVar(&approvalTimeout, "approval-timeout", approval.DefaultTimeout,
		"How long an approval dialog tightens filtering")
	rootCmd.PersistentFlags().StringVar(&dedupMode, "dedup-mode", string(dedup.ModeWindow),
		"Duplicate suppression mode (window, session)")
	rootCmd.PersistentFlags().DurationVar(&dedupWindow, "dedup-window", dedup.DefaultWindow,
		"Window in which repeated text is suppressed")
	rootCmd.PersistentFlags().IntVar(&dedupMax, "dedup-max", dedup.DefaultMaxEntries,
		"Maximum remembered utterances")
	rootCmd.PersistentFlags().BoolVar(&noAnnouncePrompts, "no-announce-prompts", false,
		"Do not speak approval prompts")

	// Integration
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", os.Getenv("CLAUDEVOICE_NATS_URL"),
		"Publish utterances and accept stop signals over NATS")

	// System and debugging
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", envBool("CLAUDEVOICE_DEBUG"),
		"Enable debug mode")
}

func runTerminal(cmd *cobra.Command, args []string) error {
	initLogging(false)
	defer util.CloseLogger()

	config := newVoiceConfig()
	config.Command = command
	config.Args = args

	o, err := voice.NewOrchestrator(config, nil)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	code, err := o.RunTerminal(ctx)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// newVoiceConfig collects the flags shared by all modes.
func newVoiceConfig() *voice.VoiceConfig {
	var patterns string
	if patternsFile != "" {
		patterns = expandPath(patternsFile)
	}
	return &voice.VoiceConfig{
		SpeakCmd:        speech.ParseCommand(speakCmd),
		SynthCmd:        speech.ParseCommand(synthCmd),
		PlayerCmd:       speech.ParseCommand(playerCmd),
		PatternsFile:    patterns,
		ApprovalTimeout: approvalTimeout,
		AnnouncePrompts: !noAnnouncePrompts,
		DedupMode:       dedupMode,
		DedupWindow:     dedupWindow,
		DedupMax:        dedupMax,
		NATSURL:         natsURL,
	}
}

func initLogging(console bool) {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logFile := expandPath(defaultLogFile)
	ensureDir(filepath.Dir(logFile))
	util.InitLogger(logLevel, logFile, debug && console)
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func envBool(name string) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
