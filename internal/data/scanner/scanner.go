package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/penwyp/go-claude-voice/internal/util"
)

// DefaultProjectsDir returns ~/.claude/projects, where Claude Code keeps
// its JSONL transcripts.
func DefaultProjectsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "projects")
	}
	return filepath.Join(home, ".claude", "projects")
}

// FileScanner finds transcript files below a directory.
type FileScanner struct {
	baseDir string
	ext     string
}

func NewFileScanner(baseDir string) *FileScanner {
	return &FileScanner{
		baseDir: baseDir,
		ext:     ".jsonl",
	}
}

func (s *FileScanner) BaseDir() string {
	return s.baseDir
}

// Scan returns every transcript path below the base directory, sorted.
// Unreadable entries and a missing base directory are skipped.
func (s *FileScanner) Scan() ([]string, error) {
	start := time.Now()
	var files []string
	dirCount := 0

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			util.LogDebugf("Skip path (error): %s - %v", path, err)
			return nil
		}
		if d.IsDir() {
			dirCount++
			return nil
		}
		if s.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)

	util.LogDebugf("Transcript scan of %s: %d directories, %d files in %v",
		s.baseDir, dirCount, len(files), time.Since(start))
	return files, err
}

// Matches reports whether path looks like a transcript file.
func (s *FileScanner) Matches(path string) bool {
	return strings.EqualFold(filepath.Ext(path), s.ext)
}
