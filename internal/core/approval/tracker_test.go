package approval

import (
	"testing"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestTrackerStartsInactive(t *testing.T) {
	tracker := NewTracker(10 * time.Second)
	assert.False(t, tracker.State(time.Now()).Active)
}

func TestTrackerDefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewTracker(0).Timeout())
	assert.Equal(t, DefaultTimeout, NewTracker(-time.Second).Timeout())
}

func TestTrackerExpiresWithoutExplicitClear(t *testing.T) {
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Second)

	state := tracker.Observe(model.VerdictApprovalPrompt, base)
	assert.True(t, state.Active)
	assert.Equal(t, base.Add(10*time.Second), state.Deadline)

	assert.True(t, tracker.State(base.Add(9*time.Second)).Active)
	assert.False(t, tracker.State(base.Add(10*time.Second)).Active)
	assert.False(t, tracker.State(base.Add(11*time.Second)).Active)
}

func TestTrackerLatestPromptWins(t *testing.T) {
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Second)

	tracker.Observe(model.VerdictApprovalPrompt, base)
	state := tracker.Observe(model.VerdictApprovalOption, base.Add(8*time.Second))
	assert.Equal(t, base.Add(18*time.Second), state.Deadline)
	assert.True(t, tracker.State(base.Add(15*time.Second)).Active)
}

func TestTrackerIgnoresOtherVerdicts(t *testing.T) {
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Second)

	for _, v := range []model.Verdict{model.VerdictContent, model.VerdictGarbage, model.VerdictToolChatter} {
		assert.False(t, tracker.Observe(v, base).Active, v.String())
	}

	tracker.Observe(model.VerdictApprovalPrompt, base)
	state := tracker.Observe(model.VerdictContent, base.Add(time.Second))
	assert.True(t, state.Active)
	assert.Equal(t, base.Add(10*time.Second), state.Deadline)
}

func TestTrackerActivateAndReset(t *testing.T) {
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(8 * time.Second)

	assert.True(t, tracker.Activate(base).Active)
	tracker.Reset()
	assert.False(t, tracker.State(base).Active)
	assert.True(t, tracker.State(base).Deadline.IsZero())
}
