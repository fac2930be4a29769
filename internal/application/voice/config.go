package voice

import (
	"fmt"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/approval"
	"github.com/penwyp/go-claude-voice/internal/core/dedup"
	"github.com/penwyp/go-claude-voice/internal/data/source"
	"github.com/penwyp/go-claude-voice/internal/data/store"
)

const DefaultDrainTimeout = 2 * time.Second

// VoiceConfig contains configuration for both narration modes
type VoiceConfig struct {
	// Monitored program (terminal mode)
	Command string
	Args    []string

	// Speech backend; SpeakCmd or SynthCmd+PlayerCmd
	SpeakCmd  []string
	SynthCmd  []string
	PlayerCmd []string

	// Classification
	PatternsFile    string // overrides the embedded pattern table
	ApprovalTimeout time.Duration
	AnnouncePrompts bool

	// Deduplication
	DedupMode   string // window, session
	DedupWindow time.Duration
	DedupMax    int

	// Structured mode
	Store        store.Options
	PollInterval time.Duration
	FromStart    bool // read existing records instead of starting at now

	// Integration
	NATSURL string

	// How long terminal mode keeps speaking after the command exits
	DrainTimeout time.Duration
}

// Validate fills defaults and rejects inconsistent settings
func (c *VoiceConfig) Validate() error {
	if c.ApprovalTimeout == 0 {
		c.ApprovalTimeout = approval.DefaultTimeout
	}
	if c.ApprovalTimeout < 0 {
		return fmt.Errorf("approval timeout must be positive, got %v", c.ApprovalTimeout)
	}

	if c.DedupMode == "" {
		c.DedupMode = string(dedup.ModeWindow)
	}
	switch dedup.Mode(c.DedupMode) {
	case dedup.ModeWindow:
		if c.DedupWindow == 0 {
			c.DedupWindow = dedup.DefaultWindow
		}
	case dedup.ModeSession:
	default:
		return fmt.Errorf("unknown dedup mode %q (want window or session)", c.DedupMode)
	}
	if c.DedupWindow < 0 {
		return fmt.Errorf("dedup window must be positive, got %v", c.DedupWindow)
	}
	if c.DedupMax == 0 {
		c.DedupMax = dedup.DefaultMaxEntries
	}
	if c.DedupMax < 0 {
		return fmt.Errorf("dedup max must be positive, got %d", c.DedupMax)
	}

	if c.PollInterval == 0 {
		c.PollInterval = source.DefaultPollInterval
	}
	if c.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("poll interval too small: %v", c.PollInterval)
	}
	if c.Store.Kind == "" {
		c.Store.Kind = store.KindSQLite
	}

	if len(c.SynthCmd) > 0 && len(c.PlayerCmd) == 0 {
		return fmt.Errorf("--synth-cmd requires --player-cmd")
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	return nil
}

// DedupConfig returns the deduplication settings after Validate.
func (c *VoiceConfig) DedupConfig() dedup.Config {
	return dedup.Config{
		Mode:       dedup.Mode(c.DedupMode),
		Window:     c.DedupWindow,
		MaxEntries: c.DedupMax,
	}
}
