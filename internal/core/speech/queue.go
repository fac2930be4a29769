package speech

import (
	"context"
	"sync"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// Speaker turns text into audible speech. Speak blocks until playback ends
// and must return promptly once ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

func (f SpeakerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Canceler is implemented by speakers that can abort playback out of band,
// e.g. by killing an audio process. CancelAll calls it after cancelling the
// playback context.
type Canceler interface {
	Cancel()
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	Pending    []model.Utterance
	NowPlaying *model.Utterance
}

// Idle reports whether nothing is playing or waiting.
func (s Snapshot) Idle() bool {
	return s.NowPlaying == nil && len(s.Pending) == 0
}

type Option func(*Queue)

// WithOnError registers a hook for backend failures. Failures of cancelled
// playbacks are not reported.
func WithOnError(fn func(model.Utterance, error)) Option {
	return func(q *Queue) { q.onError = fn }
}

// WithOnStart registers a hook called when an utterance starts playing.
func WithOnStart(fn func(model.Utterance)) Option {
	return func(q *Queue) { q.onStart = fn }
}

// Queue plays utterances one at a time in acceptance order.
//
// Each playback carries the generation it was started in. CancelAll bumps
// the generation, so a playback that completes afterwards is discarded
// instead of advancing the queue. The slot channel admits one Speak call
// at a time: a playback started after CancelAll waits for the cancelled one
// to return before it speaks.
type Queue struct {
	speaker Speaker
	onError func(model.Utterance, error)
	onStart func(model.Utterance)

	mu         sync.Mutex
	pending    []model.Utterance
	nowPlaying *model.Utterance
	generation uint64
	cancel     context.CancelFunc
	idle       chan struct{} // closed while Idle with nothing pending
	closed     bool

	slot chan struct{}
}

func NewQueue(speaker Speaker, opts ...Option) *Queue {
	q := &Queue{
		speaker: speaker,
		idle:    make(chan struct{}),
		slot:    make(chan struct{}, 1),
	}
	close(q.idle)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends u and starts playback when the queue is Idle.
func (q *Queue) Enqueue(u model.Utterance) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.pending = append(q.pending, u)
	if q.nowPlaying == nil {
		q.playNextLocked()
	}
}

// playNextLocked moves the head of pending to nowPlaying. q.mu must be held.
func (q *Queue) playNextLocked() {
	if len(q.pending) == 0 {
		q.nowPlaying = nil
		q.setIdleLocked(true)
		return
	}

	u := q.pending[0]
	q.pending = q.pending[1:]
	q.nowPlaying = &u
	q.setIdleLocked(false)

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.play(ctx, q.generation, u)
}

func (q *Queue) play(ctx context.Context, generation uint64, u model.Utterance) {
	select {
	case q.slot <- struct{}{}:
	case <-ctx.Done():
		q.complete(ctx, generation, u, nil)
		return
	}

	if q.onStart != nil && ctx.Err() == nil {
		q.onStart(u)
	}
	err := q.speaker.Speak(ctx, u.Text)
	<-q.slot

	q.complete(ctx, generation, u, err)
}

func (q *Queue) complete(ctx context.Context, generation uint64, u model.Utterance, err error) {
	q.mu.Lock()
	if generation != q.generation {
		// Cancelled; CancelAll already reset the queue
		q.mu.Unlock()
		return
	}
	q.cancel = nil
	q.playNextLocked()
	q.mu.Unlock()

	if err != nil && ctx.Err() == nil && q.onError != nil {
		q.onError(u, err)
	}
}

// CancelAll clears pending, aborts the current playback and returns the
// queue to Idle. It is idempotent and safe to call from any goroutine.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	q.pending = nil
	q.nowPlaying = nil
	q.generation++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.setIdleLocked(true)
	q.mu.Unlock()

	if c, ok := q.speaker.(Canceler); ok {
		c.Cancel()
	}
}

func (q *Queue) setIdleLocked(idle bool) {
	select {
	case <-q.idle:
		if !idle {
			q.idle = make(chan struct{})
		}
	default:
		if idle {
			close(q.idle)
		}
	}
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{Pending: make([]model.Utterance, len(q.pending))}
	copy(s.Pending, q.pending)
	if q.nowPlaying != nil {
		u := *q.nowPlaying
		s.NowPlaying = &u
	}
	return s
}

// Wait blocks until the queue drains or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
			q.mu.Lock()
			drained := q.nowPlaying == nil && len(q.pending) == 0
			q.mu.Unlock()
			if drained {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels everything and makes further Enqueue calls no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.CancelAll()
}
