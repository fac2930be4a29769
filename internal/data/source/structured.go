package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/data/store"
	"github.com/penwyp/go-claude-voice/internal/util"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultBatchSize    = 100
)

type StructuredOptions struct {
	Interval  time.Duration
	BatchSize int
	// Cursor is the timestamp (Unix ms) after which records are read.
	// Zero reads the store from the start.
	Cursor int64
}

// StructuredSource polls a MessageStore and emits one RawEvent per text
// block of every record. Malformed records are skipped; the cursor moves
// past them either way so they are not read again.
type StructuredSource struct {
	store     store.MessageStore
	interval  time.Duration
	batchSize int
	cursor    atomic.Int64
}

func NewStructuredSource(st store.MessageStore, opts StructuredOptions) *StructuredSource {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	s := &StructuredSource{
		store:     st,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
	s.cursor.Store(opts.Cursor)
	return s
}

// Cursor returns the timestamp of the last record consumed.
func (s *StructuredSource) Cursor() int64 {
	return s.cursor.Load()
}

// Run polls until ctx is done. Poll failures are logged and retried on the
// next tick.
func (s *StructuredSource) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if n, ok := s.store.(store.Notifier); ok {
		wake = n.Notify()
	}

	for {
		s.drain(ctx, handler)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

// drain polls until a batch comes back short.
func (s *StructuredSource) drain(ctx context.Context, handler Handler) {
	for ctx.Err() == nil {
		n, err := s.poll(ctx, handler)
		if err != nil {
			if ctx.Err() == nil {
				util.LogWarnf("Failed to poll messages: %v", err)
			}
			return
		}
		if n < s.batchSize {
			return
		}
	}
}

func (s *StructuredSource) poll(ctx context.Context, handler Handler) (int, error) {
	records, err := s.store.Since(ctx, s.cursor.Load(), s.batchSize)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if rec.Timestamp > s.cursor.Load() {
			s.cursor.Store(rec.Timestamp)
		}

		msg, err := model.ParseAssistantMessage(rec.Message)
		if err != nil {
			util.LogDebugf("Skip malformed record at %d: %v", rec.Timestamp, err)
			continue
		}
		for _, text := range msg.TextBlocks() {
			handler(model.RawEvent{
				Payload:    []byte(text),
				SourceKind: model.SourceStructured,
				ReceivedAt: time.Now(),
			})
		}
	}
	return len(records), nil
}
