package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Record is one structured message: JSON-encoded content and its
// timestamp in Unix milliseconds.
type Record struct {
	Message   []byte
	Timestamp int64
}

// MessageStore yields records newer than a cursor, oldest first.
type MessageStore interface {
	Since(ctx context.Context, cursor int64, limit int) ([]Record, error)
	Close() error
}

// Notifier is implemented by stores that can signal new data, letting the
// poller skip waiting for the next tick.
type Notifier interface {
	Notify() <-chan struct{}
}

// Kind selects a MessageStore implementation.
type Kind string

const (
	KindSQLite      Kind = "sqlite"
	KindPostgres    Kind = "postgres"
	KindTranscripts Kind = "transcripts"
)

// ErrUnknownKind is returned by Open for an unsupported store kind.
var ErrUnknownKind = errors.New("unknown store kind")

// DefaultTable is the table the legacy message database keeps assistant
// messages in.
const DefaultTable = "assistant_messages"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Options struct {
	Kind        Kind
	Path        string // sqlite database file
	DatabaseURL string // postgres connection string
	Table       string // postgres table, DefaultTable when empty
	Dir         string // transcripts root
	Watch       bool   // transcripts: wake on file changes
}

// DefaultSQLitePath returns ~/.claude/__store.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "__store.db")
	}
	return filepath.Join(home, ".claude", "__store.db")
}

// Open creates the store selected by opts.Kind.
func Open(ctx context.Context, opts Options) (MessageStore, error) {
	switch opts.Kind {
	case KindSQLite:
		path := opts.Path
		if path == "" {
			path = DefaultSQLitePath()
		}
		return OpenSQLite(ctx, path)
	case KindPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL, opts.Table)
	case KindTranscripts:
		return OpenTranscripts(opts.Dir, opts.Watch)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}

func validTable(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !identifier.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}
