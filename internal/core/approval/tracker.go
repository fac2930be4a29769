package approval

import (
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// DefaultTimeout is how long an approval dialog keeps the classifier strict.
const DefaultTimeout = 10 * time.Second

// Tracker owns the approval context. Expiry is checked lazily against the
// deadline on every access; no timer goroutine touches the state.
//
// Tracker is not safe for concurrent use; the pipeline serializes access.
type Tracker struct {
	timeout time.Duration
	state   model.ApprovalState
}

func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{timeout: timeout}
}

// Observe records a verdict. Approval verdicts (re)arm the deadline; the
// latest prompt wins. Other verdicts leave the state untouched apart from
// expiry.
func (t *Tracker) Observe(verdict model.Verdict, now time.Time) model.ApprovalState {
	if verdict.IsApproval() {
		return t.Activate(now)
	}
	return t.State(now)
}

// Activate arms the approval context without a classified line, e.g. when
// the monitored program switches terminal modes for a dialog.
func (t *Tracker) Activate(now time.Time) model.ApprovalState {
	t.state = model.ApprovalState{Active: true, Deadline: now.Add(t.timeout)}
	return t.state
}

// State returns the context as seen at now, clearing it once the deadline passed.
func (t *Tracker) State(now time.Time) model.ApprovalState {
	t.state = t.state.At(now)
	return t.state
}

// Reset clears the context immediately (compact / plan transitions).
func (t *Tracker) Reset() {
	t.state = model.ApprovalState{}
}

func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}
