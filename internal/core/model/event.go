package model

import "time"

// SourceKind identifies which adapter produced a RawEvent.
type SourceKind int

const (
	SourceTerminal SourceKind = iota
	SourceStructured
)

func (k SourceKind) String() string {
	switch k {
	case SourceTerminal:
		return "terminal"
	case SourceStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// RawEvent is produced by a source adapter and consumed exactly once by the pipeline.
// Terminal payloads are raw PTY bytes; structured payloads are the text of one text block.
type RawEvent struct {
	Payload    []byte
	SourceKind SourceKind
	ReceivedAt time.Time
}

// Verdict is the classification of a single normalized line.
type Verdict int

const (
	VerdictContent Verdict = iota
	VerdictGarbage
	VerdictToolChatter
	VerdictApprovalPrompt
	VerdictApprovalOption
)

func (v Verdict) String() string {
	switch v {
	case VerdictContent:
		return "Content"
	case VerdictGarbage:
		return "Garbage"
	case VerdictToolChatter:
		return "ToolChatter"
	case VerdictApprovalPrompt:
		return "ApprovalPrompt"
	case VerdictApprovalOption:
		return "ApprovalOption"
	default:
		return "Unknown"
	}
}

// IsApproval reports whether the verdict belongs to an interactive approval dialog.
func (v Verdict) IsApproval() bool {
	return v == VerdictApprovalPrompt || v == VerdictApprovalOption
}

// ApprovalState is the time-boxed approval context read by the classifier.
// A zero value is inactive.
type ApprovalState struct {
	Active   bool
	Deadline time.Time
}

// At returns the state as observed at now; an elapsed deadline reads as inactive.
func (s ApprovalState) At(now time.Time) ApprovalState {
	if s.Active && !now.Before(s.Deadline) {
		return ApprovalState{}
	}
	return s
}
