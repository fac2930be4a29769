package model

import (
	"time"

	"github.com/google/uuid"
)

// Utterance is a finalized block of text destined for speech. Treat it as immutable.
type Utterance struct {
	ID         string
	Text       string
	Source     SourceKind
	ProducedAt time.Time
}

// NewUtterance stamps text with a fresh ID.
func NewUtterance(text string, source SourceKind, now time.Time) Utterance {
	return Utterance{
		ID:         uuid.NewString(),
		Text:       text,
		Source:     source,
		ProducedAt: now,
	}
}
