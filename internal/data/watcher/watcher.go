package watcher

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/penwyp/go-claude-voice/internal/util"
)

// Event is a change to a transcript file.
type Event struct {
	Path      string
	Operation string
}

// FileWatcher reports writes to transcript files below a set of roots.
// Directories created after start are watched as they appear.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	ext     string
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

func NewFileWatcher(paths []string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher: watcher,
		ext:     ".jsonl",
		events:  make(chan Event, 100),
		done:    make(chan struct{}),
	}

	for _, path := range paths {
		if err := fw.addTree(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go fw.processEvents()
	return fw, nil
}

// addTree watches root and every directory below it.
func (fw *FileWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fw.watcher.Add(p)
		}
		return nil
	})
}

func (fw *FileWatcher) processEvents() {
	defer close(fw.events)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				// New project directories show up while a session starts
				if err := fw.addTree(event.Name); err != nil {
					util.LogDebugf("Failed to watch %s: %v", event.Name, err)
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), fw.ext) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case fw.events <- Event{Path: event.Name, Operation: event.Op.String()}:
			case <-fw.done:
				return
			default:
				// Consumers only need a wake-up; a full buffer already holds one
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("File monitoring error: " + err.Error())

		case <-fw.done:
			return
		}
	}
}

// Events is closed after Close.
func (fw *FileWatcher) Events() <-chan Event {
	return fw.events
}

func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}
