package source

import "github.com/penwyp/go-claude-voice/internal/core/model"

// Handler receives every raw event produced by an adapter. It is called
// from the adapter's goroutine, one event at a time.
type Handler func(model.RawEvent)
