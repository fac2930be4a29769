package dedup

import (
	"strings"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// Mode selects between near-term and session-level de-duplication.
type Mode string

const (
	// ModeWindow forgets entries after Window; capacity evicts oldest-first.
	ModeWindow Mode = "window"
	// ModeSession keeps entries for the whole session; when the cap is
	// exceeded the oldest half is evicted.
	ModeSession Mode = "session"
)

const (
	DefaultWindow     = 5 * time.Second
	DefaultMaxEntries = 100
)

// Config selects the eviction mode and its limits.
type Config struct {
	Mode       Mode
	Window     time.Duration // ignored in ModeSession
	MaxEntries int
}

// Entry is one remembered utterance text.
type Entry struct {
	Text       string
	InsertedAt time.Time
}

// Cache remembers recently accepted utterances. Entries are kept in
// insertion order, so the head is always the oldest.
//
// Cache is not safe for concurrent use; the pipeline serializes access.
type Cache struct {
	cfg     Config
	entries []Entry
}

// New returns an empty cache; unset fields take the defaults.
func New(cfg Config) *Cache {
	if cfg.Mode == "" {
		cfg.Mode = ModeWindow
	}
	if cfg.Mode == ModeWindow && cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Cache{cfg: cfg}
}

// Accept reports whether u is novel. Novel texts are remembered at now.
// A text is a repeat when it equals a live entry, or when either text
// contains the other.
func (c *Cache) Accept(u model.Utterance, now time.Time) bool {
	c.purgeExpired(now)

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return false
	}
	for _, e := range c.entries {
		if e.Text == text {
			return false
		}
	}
	for _, e := range c.entries {
		if strings.Contains(e.Text, text) || strings.Contains(text, e.Text) {
			return false
		}
	}

	c.entries = append(c.entries, Entry{Text: text, InsertedAt: now})
	c.enforceCap()
	return true
}

func (c *Cache) purgeExpired(now time.Time) {
	if c.cfg.Mode != ModeWindow {
		return
	}
	cutoff := now.Add(-c.cfg.Window)
	i := 0
	for i < len(c.entries) && c.entries[i].InsertedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.entries = append(c.entries[:0], c.entries[i:]...)
	}
}

func (c *Cache) enforceCap() {
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}
	drop := len(c.entries) - c.cfg.MaxEntries
	if c.cfg.Mode == ModeSession {
		drop = len(c.entries) / 2
	}
	c.entries = append(c.entries[:0], c.entries[drop:]...)
}

// Purge forgets everything. Used on compact / plan transitions, which
// legitimately repeat earlier content.
func (c *Cache) Purge() {
	c.entries = nil
}

func (c *Cache) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the live entries, oldest first.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
