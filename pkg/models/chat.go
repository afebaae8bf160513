// API types for the assistant chat surface
package models

import (
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Message instead of db.Message

type Conversation = db.Conversation
type Message = db.Message
type PageContext = db.PageContext
type TokenUsage = db.TokenUsage

// ========== Requests ==========

// SendMessageRequest is one user turn. ConversationID is caller-supplied; an
// unknown id creates the conversation with the requested mode and page
// context, which are then locked for its lifetime.
type SendMessageRequest struct {
	ConversationID string       `json:"conversation_id" binding:"required"`
	Message        string       `json:"message" binding:"required"`
	Mode           string       `json:"mode,omitempty"` // global (default), page
	PageContext    *PageContext `json:"page_context,omitempty"`
}

// ContinueConversationRequest opens a fresh conversation carrying the closed
// conversation's final summary forward.
type ContinueConversationRequest struct {
	NewConversationID string `json:"new_conversation_id,omitempty"`
}

// ========== Streaming ==========

// Stream chunk types
const (
	ChunkTypeContent    = "content"
	ChunkTypeToolCall   = "tool_call"
	ChunkTypeToolResult = "tool_result"
	ChunkTypeDone       = "done"
	ChunkTypeError      = "error"
)

// StreamChunk is one SSE event of an assistant response stream.
type StreamChunk struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
	Type           string `json:"type"`

	Content    string             `json:"content,omitempty"`
	ToolCall   *db.ToolCallPart   `json:"tool_call,omitempty"`
	ToolResult *db.ToolResultPart `json:"tool_result,omitempty"`

	// Done chunks may carry the final usage total.
	Usage *TokenUsage `json:"usage,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ========== Responses ==========

// ConversationListResponse is the paged conversation listing.
type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"has_more"`
}

// MessageListResponse wraps a conversation's messages.
type MessageListResponse struct {
	Messages []Message `json:"messages"`
}
