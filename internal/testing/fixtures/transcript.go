package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-claude-voice/internal/core/model"
)

// TranscriptEntry is one line of a Claude Code JSONL transcript
type TranscriptEntry struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Uuid      string  `json:"uuid"`
	SessionId string  `json:"sessionId"`
	IsMeta    bool    `json:"isMeta,omitempty"`
	Message   Message `json:"message"`
}

// Message is the message object of a transcript entry
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Id    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// TranscriptGenerator writes transcript files below a projects directory
type TranscriptGenerator struct {
	baseDir string
	seq     int
}

func NewTranscriptGenerator(baseDir string) *TranscriptGenerator {
	return &TranscriptGenerator{baseDir: baseDir}
}

// Path returns the transcript file of a session in a project.
func (g *TranscriptGenerator) Path(project, session string) string {
	return filepath.Join(g.baseDir, project, session+".jsonl")
}

// Assistant builds an assistant entry with one text block per text.
func (g *TranscriptGenerator) Assistant(session string, at time.Time, texts ...string) TranscriptEntry {
	blocks := make([]ContentBlock, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, ContentBlock{Type: model.ContentText, Text: text})
	}
	return g.entry(model.EntryAssistant, session, at, blocks)
}

// ToolUse builds an assistant entry carrying only a tool call.
func (g *TranscriptGenerator) ToolUse(session string, at time.Time, tool string) TranscriptEntry {
	g.seq++
	return g.entry(model.EntryAssistant, session, at, []ContentBlock{{
		Type:  model.ContentToolUse,
		Id:    fmt.Sprintf("toolu_%03d", g.seq),
		Name:  tool,
		Input: map[string]string{"command": "go test ./..."},
	}})
}

// User builds a user entry.
func (g *TranscriptGenerator) User(session string, at time.Time, text string) TranscriptEntry {
	return g.entry(model.EntryUser, session, at, []ContentBlock{{Type: model.ContentText, Text: text}})
}

func (g *TranscriptGenerator) entry(kind, session string, at time.Time, blocks []ContentBlock) TranscriptEntry {
	g.seq++
	return TranscriptEntry{
		Type:      kind,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Uuid:      fmt.Sprintf("uuid-%s-%d", kind, g.seq),
		SessionId: session,
		Message:   Message{Role: kind, Content: blocks},
	}
}

// Append writes entries to the session's transcript, creating it if needed.
func (g *TranscriptGenerator) Append(project, session string, entries ...TranscriptEntry) error {
	path := g.Path(project, session)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, entry := range entries {
		data, err := sonic.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// TerminalCapture builds raw terminal output the way the monitored CLI
// draws it: CRLF line endings, cursor movement, colors and spinners.
type TerminalCapture struct {
	b strings.Builder
}

// Narration writes a marker line followed by continuation lines.
func (c *TerminalCapture) Narration(first string, rest ...string) *TerminalCapture {
	c.b.WriteString("\x1b[2K\x1b[1G\x1b[37m⏺\x1b[39m " + first + "\r\n")
	for _, line := range rest {
		c.b.WriteString(line + "\r\n")
	}
	return c
}

// Blank ends the current block.
func (c *TerminalCapture) Blank() *TerminalCapture {
	c.b.WriteString("\r\n")
	return c
}

// Spinner writes a status line redrawn in place.
func (c *TerminalCapture) Spinner(text string) *TerminalCapture {
	for _, glyph := range []string{"✻", "✽", "✶"} {
		c.b.WriteString("\r\x1b[2K\x1b[33m" + glyph + "\x1b[39m " + text)
	}
	c.b.WriteString("\r\n")
	return c
}

// Line writes a plain line.
func (c *TerminalCapture) Line(text string) *TerminalCapture {
	c.b.WriteString(text + "\r\n")
	return c
}

// ApprovalDialog writes the focus-reporting switch followed by a prompt and
// its numbered options.
func (c *TerminalCapture) ApprovalDialog(prompt string, options ...string) *TerminalCapture {
	c.b.WriteString("\x1b[?1004l")
	c.b.WriteString("\x1b[1m" + prompt + "\x1b[22m\r\n")
	for i, option := range options {
		prefix := "  "
		if i == 0 {
			prefix = "❯ "
		}
		fmt.Fprintf(&c.b, "%s%d. %s\r\n", prefix, i+1, option)
	}
	return c
}

func (c *TerminalCapture) Bytes() []byte {
	return []byte(c.b.String())
}

func (c *TerminalCapture) String() string {
	return c.b.String()
}
