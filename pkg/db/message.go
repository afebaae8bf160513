// Database models for conversation messages
package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Message represents one immutable conversation turn. Content is an ordered
// sequence of typed parts stored as a JSON column; messages are never mutated
// after creation and are deleted together with their conversation.
type Message struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string `json:"conversation_id" gorm:"index;size:36;not null"`

	Role string `json:"role" gorm:"size:20;not null"` // user, assistant, system

	Parts MessageParts `json:"parts" gorm:"type:text"`

	Status string      `json:"status" gorm:"size:20;default:'completed'"` // streaming, completed, error
	Usage  *TokenUsage `json:"usage,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (*Message) TableName() string {
	return "messages"
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message status
const (
	MessageStatusStreaming = "streaming"
	MessageStatusCompleted = "completed"
	MessageStatusError     = "error"
)

// Part type constants
const (
	PartTypeText       = "text"
	PartTypeToolCall   = "tool_call"
	PartTypeToolResult = "tool_result"
)

// MessagePart is one content block. Type discriminates which of the optional
// payload fields is set.
type MessagePart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallPart   `json:"tool_call,omitempty"`
	ToolResult *ToolResultPart `json:"tool_result,omitempty"`
}

type ToolCallPart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

type ToolResultPart struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
}

// MessageParts is an ordered slice of parts stored as JSON in the database.
type MessageParts []MessagePart

// Value implements driver.Valuer for database storage
func (p MessageParts) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for database retrieval
func (p *MessageParts) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return nil
}

// TokenUsage records model token consumption for an assistant turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Value implements driver.Valuer for database storage
func (t *TokenUsage) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	if t.TotalTokens == 0 && t.PromptTokens == 0 && t.CompletionTokens == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval
func (t *TokenUsage) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return nil
}

// ========== Message helper methods ==========

// AddTextPart appends a text block to the message (in-memory only)
func (m *Message) AddTextPart(text string) {
	m.Parts = append(m.Parts, MessagePart{Type: PartTypeText, Text: text})
}

// AddToolCallPart appends a tool call block to the message (in-memory only)
func (m *Message) AddToolCallPart(id, name, arguments string) {
	m.Parts = append(m.Parts, MessagePart{
		Type:     PartTypeToolCall,
		ToolCall: &ToolCallPart{ID: id, Name: name, Arguments: arguments},
	})
}

// AddToolResultPart appends a tool result block to the message (in-memory only)
func (m *Message) AddToolResultPart(toolCallID, name, content string) {
	m.Parts = append(m.Parts, MessagePart{
		Type:       PartTypeToolResult,
		ToolResult: &ToolResultPart{ToolCallID: toolCallID, Name: name, Content: content},
	})
}

// GetTextContent returns all text content concatenated
func (m *Message) GetTextContent() string {
	var result string
	for _, part := range m.Parts {
		if part.Type == PartTypeText && part.Text != "" {
			if result != "" {
				result += "\n"
			}
			result += part.Text
		}
	}
	return result
}

// HasToolCalls returns true if the message contains tool call parts
func (m *Message) HasToolCalls() bool {
	for _, part := range m.Parts {
		if part.Type == PartTypeToolCall {
			return true
		}
	}
	return false
}
