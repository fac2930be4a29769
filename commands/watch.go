package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/penwyp/go-claude-voice/internal/application/voice"
	"github.com/penwyp/go-claude-voice/internal/data/source"
	"github.com/penwyp/go-claude-voice/internal/data/store"
	"github.com/penwyp/go-claude-voice/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Store selection
	watchSource      string
	watchDBPath      string
	watchDatabaseURL string
	watchTable       string
	watchDir         string

	// Polling
	watchPollInterval time.Duration
	watchFromStart    bool
	watchNoNotify     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Speak assistant messages read from a message store",
	Long: `Polls a store of assistant messages and speaks new text blocks as they appear.

Sources:
- sqlite:      the local message database (read through DuckDB)
- postgres:    a shared message table
- transcripts: Claude Code JSONL transcripts under ~/.claude/projects

Only messages newer than the start of the watch are spoken unless --from-start is set.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchSource, "source", string(store.KindSQLite),
		"Message store (sqlite, postgres, transcripts)")
	watchCmd.Flags().StringVar(&watchDBPath, "db", "",
		"SQLite database path (default ~/.claude/__store.db)")
	watchCmd.Flags().StringVar(&watchDatabaseURL, "database-url", os.Getenv("CLAUDEVOICE_DATABASE_URL"),
		"PostgreSQL connection string")
	watchCmd.Flags().StringVar(&watchTable, "table", store.DefaultTable,
		"PostgreSQL table holding assistant messages")
	watchCmd.Flags().StringVar(&watchDir, "dir", "",
		"Transcript directory (default ~/.claude/projects)")

	watchCmd.Flags().DurationVar(&watchPollInterval, "poll-interval", source.DefaultPollInterval,
		"How often the store is polled")
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false,
		"Speak messages already in the store")
	watchCmd.Flags().BoolVar(&watchNoNotify, "no-notify", false,
		"Transcripts: poll only, do not watch files for changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	initLogging(true)
	defer util.CloseLogger()

	opts, err := watchStoreOptions()
	if err != nil {
		return err
	}

	config := newVoiceConfig()
	config.Store = opts
	config.PollInterval = watchPollInterval
	config.FromStart = watchFromStart

	o, err := voice.NewOrchestrator(config, nil)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return o.RunStructured(ctx)
}

func watchStoreOptions() (store.Options, error) {
	opts := store.Options{
		Kind:  store.Kind(watchSource),
		Table: watchTable,
		Watch: !watchNoNotify,
	}
	switch opts.Kind {
	case store.KindSQLite:
		if watchDBPath != "" {
			opts.Path = expandPath(watchDBPath)
		}
	case store.KindPostgres:
		if watchDatabaseURL == "" {
			return opts, fmt.Errorf("--database-url or CLAUDEVOICE_DATABASE_URL is required for the postgres source")
		}
		opts.DatabaseURL = watchDatabaseURL
	case store.KindTranscripts:
		if watchDir != "" {
			opts.Dir = expandPath(watchDir)
		}
	default:
		return opts, fmt.Errorf("%w: %q (want sqlite, postgres or transcripts)", store.ErrUnknownKind, watchSource)
	}
	return opts, nil
}
