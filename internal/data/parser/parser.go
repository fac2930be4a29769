package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/util"
)

const maxLineSize = 10 * 1024 * 1024

// TailResult is what one incremental read of a transcript produced.
type TailResult struct {
	Lines   []model.TranscriptLine
	Offset  int64 // byte offset just past the last complete line
	Skipped int   // complete lines that were not valid JSON
}

// Tail reads the complete lines of path starting at offset. A trailing line
// without a newline is left for the next call, so a transcript being
// written concurrently is never decoded half-way.
func Tail(path string, offset int64) (TailResult, error) {
	result := TailResult{Offset: offset}

	file, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("failed to seek transcript: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	lineNo := 0
	for {
		raw, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			raw, err = readLongLine(reader, raw)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, fmt.Errorf("failed to read transcript: %w", err)
		}

		lineNo++
		result.Offset += int64(len(raw))
		// sonic may alias the input; raw is reused by the reader
		line := bytes.TrimSpace(append([]byte(nil), raw...))
		if len(line) == 0 {
			continue
		}

		var entry model.TranscriptLine
		if err := sonic.Unmarshal(line, &entry); err != nil {
			util.LogDebugf("Skip invalid JSON line %s:+%d - %v", path, lineNo, err)
			result.Skipped++
			continue
		}
		result.Lines = append(result.Lines, entry)
	}
	return result, nil
}

// readLongLine continues a line that overflowed the reader buffer.
func readLongLine(reader *bufio.Reader, head []byte) ([]byte, error) {
	buf := append([]byte(nil), head...)
	for {
		chunk, err := reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLineSize {
			return nil, fmt.Errorf("line exceeds %d bytes", maxLineSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, err
	}
}
