package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/data/parser"
	"github.com/penwyp/go-claude-voice/internal/data/scanner"
	"github.com/penwyp/go-claude-voice/internal/data/watcher"
	"github.com/penwyp/go-claude-voice/internal/util"
)

type fileState struct {
	info   util.FileInfo
	offset int64
}

// TranscriptStore tails Claude Code JSONL transcripts and exposes their
// assistant messages as records. Each file is read incrementally from the
// last consumed offset; a truncated or recreated file is read again from
// the start.
type TranscriptStore struct {
	scanner *scanner.FileScanner
	watcher *watcher.FileWatcher
	wake    chan struct{}
	done    chan struct{}
	closed  sync.Once

	mu      sync.Mutex
	files   map[string]*fileState
	pending []Record
}

// OpenTranscripts reads transcripts below dir (the Claude projects
// directory when empty). With watch set, file changes wake the poller.
func OpenTranscripts(dir string, watch bool) (*TranscriptStore, error) {
	if dir == "" {
		dir = scanner.DefaultProjectsDir()
	}
	s := &TranscriptStore{
		scanner: scanner.NewFileScanner(dir),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		files:   make(map[string]*fileState),
	}
	if watch {
		fw, err := watcher.NewFileWatcher([]string{dir})
		if err != nil {
			util.LogWarnf("File watching unavailable for %s, polling only: %v", dir, err)
		} else {
			s.watcher = fw
			go s.forwardEvents()
		}
	}
	return s, nil
}

func (s *TranscriptStore) forwardEvents() {
	for {
		select {
		case _, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			select {
			case s.wake <- struct{}{}:
			default:
			}
		case <-s.done:
			return
		}
	}
}

// Notify fires after a transcript changed on disk.
func (s *TranscriptStore) Notify() <-chan struct{} {
	return s.wake
}

func (s *TranscriptStore) Since(ctx context.Context, cursor int64, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.scanner.Scan()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.readFile(path)
	}

	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].Timestamp < s.pending[j].Timestamp
	})

	start := 0
	for start < len(s.pending) && s.pending[start].Timestamp <= cursor {
		start++
	}
	end := len(s.pending)
	if limit > 0 && end-start > limit {
		end = start + limit
	}

	out := make([]Record, end-start)
	copy(out, s.pending[start:end])
	s.pending = append(s.pending[:0], s.pending[end:]...)
	return out, nil
}

// readFile appends the assistant messages written to path since the last
// read. s.mu must be held.
func (s *TranscriptStore) readFile(path string) {
	info, err := util.GetFileInfo(path)
	if err != nil {
		util.LogDebugf("Skip transcript %s: %v", path, err)
		return
	}

	state, ok := s.files[path]
	if !ok {
		state = &fileState{}
		s.files[path] = state
	} else if info.Replaced(state.info) {
		util.LogDebugf("Transcript %s was replaced, reading from start", path)
		state.offset = 0
	}
	state.info = info
	if info.Size == state.offset {
		return
	}

	result, err := parser.Tail(path, state.offset)
	if err != nil {
		util.LogWarnf("Failed to read transcript %s: %v", path, err)
		return
	}
	state.offset = result.Offset

	for _, line := range result.Lines {
		if line.Type != model.EntryAssistant || line.IsMeta {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, line.Timestamp)
		if err != nil {
			util.LogDebugf("Skip transcript line with bad timestamp %q in %s", line.Timestamp, path)
			continue
		}
		s.pending = append(s.pending, Record{
			Message:   []byte(line.Message),
			Timestamp: ts.UnixMilli(),
		})
	}
}

func (s *TranscriptStore) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
