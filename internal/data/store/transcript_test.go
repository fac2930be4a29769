package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transcriptBase = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func transcriptLine(kind string, offset time.Duration, text string) string {
	return fmt.Sprintf(`{"type":%q,"timestamp":%q,"sessionId":"s1","message":{"role":%q,"content":[{"type":"text","text":%q}]}}`+"\n",
		kind, transcriptBase.Add(offset).Format(time.RFC3339Nano), kind, text)
}

func appendTranscript(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	for _, line := range lines {
		_, err := f.WriteString(line)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
}

func ms(offset time.Duration) int64 {
	return transcriptBase.Add(offset).UnixMilli()
}

func TestTranscriptStoreReadsAssistantMessagesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "project-a", "one.jsonl")
	b := filepath.Join(dir, "project-b", "two.jsonl")

	appendTranscript(t, a,
		transcriptLine("user", 0, "question"),
		transcriptLine("assistant", 3*time.Second, "third"),
	)
	appendTranscript(t, b,
		transcriptLine("assistant", 1*time.Second, "first"),
		"not json\n",
		transcriptLine("assistant", 2*time.Second, "second"),
	)

	s, err := OpenTranscripts(dir, false)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Since(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ms(1*time.Second), records[0].Timestamp)
	assert.Equal(t, ms(2*time.Second), records[1].Timestamp)
	assert.Equal(t, ms(3*time.Second), records[2].Timestamp)
	assert.Contains(t, string(records[0].Message), "first")

	again, err := s.Since(context.Background(), records[2].Timestamp, 0)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestTranscriptStoreCursorAndLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p", "s.jsonl")
	for i := 1; i <= 5; i++ {
		appendTranscript(t, path, transcriptLine("assistant", time.Duration(i)*time.Second, fmt.Sprintf("m%d", i)))
	}

	s, err := OpenTranscripts(dir, false)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Since(context.Background(), ms(2*time.Second), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ms(3*time.Second), records[0].Timestamp)

	rest, err := s.Since(context.Background(), records[1].Timestamp, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ms(5*time.Second), rest[0].Timestamp)
}

func TestTranscriptStoreTailsAppendsAndReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p", "s.jsonl")
	appendTranscript(t, path, transcriptLine("assistant", time.Second, "one"))

	s, err := OpenTranscripts(dir, false)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Since(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	appendTranscript(t, path, transcriptLine("assistant", 2*time.Second, "two"))
	records, err = s.Since(context.Background(), records[0].Timestamp, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0].Message), "two")

	// A rewritten file is read from the start; the cursor filters old lines
	require.NoError(t, os.WriteFile(path, []byte(transcriptLine("assistant", 4*time.Second, "four")), 0644))
	records, err = s.Since(context.Background(), records[0].Timestamp, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0].Message), "four")
}

func TestTranscriptStoreNotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.jsonl")
	appendTranscript(t, path, transcriptLine("assistant", time.Second, "one"))

	s, err := OpenTranscripts(dir, true)
	require.NoError(t, err)
	defer s.Close()

	appendTranscript(t, path, transcriptLine("assistant", 2*time.Second, "two"))
	select {
	case <-s.Notify():
	case <-time.After(5 * time.Second):
		t.Fatal("no wake-up after transcript write")
	}
}

func TestOpenTranscriptsViaOpen(t *testing.T) {
	s, err := Open(context.Background(), Options{Kind: KindTranscripts, Dir: t.TempDir()})
	require.NoError(t, err)
	_, ok := s.(Notifier)
	assert.True(t, ok)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
