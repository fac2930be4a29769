package model

// Transcript entry types
const (
	EntryUser      = "user"
	EntryAssistant = "assistant"
	EntrySystem    = "system"
)

// Content block types
const (
	ContentText       = "text"
	ContentThinking   = "thinking"
	ContentToolUse    = "tool_use"
	ContentToolResult = "tool_result"
)
