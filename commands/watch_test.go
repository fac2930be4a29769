package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-claude-voice/internal/data/store"
)

func TestWatchStoreOptions(t *testing.T) {
	defer func(s, db, url, dir string, noNotify bool) {
		watchSource, watchDBPath, watchDatabaseURL, watchDir, watchNoNotify = s, db, url, dir, noNotify
	}(watchSource, watchDBPath, watchDatabaseURL, watchDir, watchNoNotify)

	t.Run("sqlite default path", func(t *testing.T) {
		watchSource, watchDBPath = "sqlite", ""
		opts, err := watchStoreOptions()
		require.NoError(t, err)
		assert.Equal(t, store.KindSQLite, opts.Kind)
		assert.Empty(t, opts.Path)
	})

	t.Run("sqlite explicit path", func(t *testing.T) {
		watchSource, watchDBPath = "sqlite", "store.db"
		opts, err := watchStoreOptions()
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(opts.Path))
	})

	t.Run("postgres requires url", func(t *testing.T) {
		watchSource, watchDatabaseURL = "postgres", ""
		_, err := watchStoreOptions()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--database-url")

		watchDatabaseURL = "postgres://localhost/claude"
		opts, err := watchStoreOptions()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost/claude", opts.DatabaseURL)
		assert.Equal(t, store.DefaultTable, opts.Table)
	})

	t.Run("transcripts", func(t *testing.T) {
		watchSource, watchDir, watchNoNotify = "transcripts", "~/projects", true
		opts, err := watchStoreOptions()
		require.NoError(t, err)
		assert.Equal(t, store.KindTranscripts, opts.Kind)
		assert.True(t, filepath.IsAbs(opts.Dir))
		assert.False(t, opts.Watch)
	})

	t.Run("unknown source", func(t *testing.T) {
		watchSource = "mysql"
		_, err := watchStoreOptions()
		assert.ErrorIs(t, err, store.ErrUnknownKind)
	})
}
