//go:build unix

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileInfoDetectsReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0644))

	first, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.EqualValues(t, 18, first.Size)
	assert.NotZero(t, first.Inode)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("line three\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	grown, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.False(t, grown.Replaced(first))

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))
	truncated, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.True(t, truncated.Replaced(grown))

	_, err = GetFileInfo(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
