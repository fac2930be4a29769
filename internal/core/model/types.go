package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// TranscriptLine is one line of a Claude Code JSONL transcript. Only the fields
// needed to locate assistant text are decoded; Message is kept raw so it can be
// handed to the structured adapter unchanged.
type TranscriptLine struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	SessionId string          `json:"sessionId"`
	Uuid      string          `json:"uuid"`
	IsMeta    bool            `json:"isMeta,omitempty"`
	Message   json.RawMessage `json:"message"`
}

// AssistantMessage is the JSON-encoded content of a structured record.
type AssistantMessage struct {
	Id      string          `json:"id,omitempty"`
	Model   string          `json:"model,omitempty"`
	Role    string          `json:"role,omitempty"`
	Type    string          `json:"type,omitempty"`
	Content FlexibleContent `json:"content"`
}

// TextBlocks returns the non-empty text of every "text" block, in order.
func (m *AssistantMessage) TextBlocks() []string {
	var texts []string
	for _, item := range m.Content {
		if item.Type != ContentText {
			continue
		}
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		texts = append(texts, item.Text)
	}
	return texts
}

// ParseAssistantMessage decodes a structured record payload.
func ParseAssistantMessage(data []byte) (*AssistantMessage, error) {
	var msg AssistantMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Content == nil {
		return nil, fmt.Errorf("message has no content")
	}
	return &msg, nil
}

type FlexibleContent []ContentItem

func (fc *FlexibleContent) UnmarshalJSON(data []byte) error {
	// First try to parse as []ContentItem array
	var items []ContentItem
	if err := sonic.Unmarshal(data, &items); err == nil {
		*fc = items
		return nil
	}

	// A bare string is a single text block
	var str string
	if err := sonic.Unmarshal(data, &str); err == nil {
		*fc = []ContentItem{{Type: ContentText, Text: str}}
		return nil
	}

	return fmt.Errorf("content must be either string or array of ContentItem")
}

type ContentItem struct {
	Id        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Text      string `json:"text,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	ToolUseId string `json:"tool_use_id,omitempty"`
	Type      string `json:"type"`
}
