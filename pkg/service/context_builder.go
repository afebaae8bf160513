// Context assembly for model calls
package service

import (
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// ContextBuilder assembles the bounded message sequence sent to the model:
// an optional synthesized summary message, the unsummarized tail, and the new
// user message last. It never mutates the conversation.
type ContextBuilder struct {
	store  *db.Store
	policy *config.AssistantConfig
	logger *slog.Logger
}

// NewContextBuilder creates the builder.
func NewContextBuilder(store *db.Store, policy *config.AssistantConfig) *ContextBuilder {
	return &ContextBuilder{
		store:  store,
		policy: policy,
		logger: utils.GetLogger(),
	}
}

// Build returns the ordered model context for one turn. A brand-new
// conversation with no summary and no history yields only the new message.
func (b *ContextBuilder) Build(conv *db.Conversation, newUserMessage string) ([]*schema.Message, error) {
	var context []*schema.Message

	if summary := b.summaryMessage(conv); summary != nil {
		context = append(context, summary)
	}

	var (
		history []db.Message
		err     error
	)
	if conv.LastSummarizedMessageID != nil {
		history, err = b.store.FindMessagesAfter(conv.ID, *conv.LastSummarizedMessageID)
	} else {
		history, err = b.store.FindRecentMessages(conv.ID, b.policy.HistoryLimit())
	}
	if err != nil {
		return nil, err
	}

	for i := range history {
		context = append(context, messageToSchemaMessages(&history[i])...)
	}

	context = append(context, schema.UserMessage(newUserMessage))
	return context, nil
}

// summaryMessage synthesizes one assistant message holding the carried-over
// and in-conversation summaries, or nil when neither is set.
func (b *ContextBuilder) summaryMessage(conv *db.Conversation) *schema.Message {
	previous := conv.PreviousSummaryText()
	current := conv.SummaryText()
	if previous == "" && current == "" {
		return nil
	}

	var sb strings.Builder
	if previous != "" {
		sb.WriteString("Summary carried over from a previous conversation:\n")
		sb.WriteString(previous)
	}
	if current != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Summary of earlier messages in this conversation:\n")
		sb.WriteString(current)
	}
	return schema.AssistantMessage(sb.String(), nil)
}

// messageToSchemaMessages converts a stored message into one or more model
// messages. An assistant message with tool parts expands into an assistant
// message carrying the tool calls followed by tool messages carrying the
// results; tool calls without a recorded result are dropped to keep the
// sequence valid for the provider.
func messageToSchemaMessages(msg *db.Message) []*schema.Message {
	if len(msg.Parts) == 0 {
		return nil
	}

	if msg.Role == db.RoleUser || msg.Role == db.RoleSystem {
		content := msg.GetTextContent()
		if content == "" {
			return nil
		}
		return []*schema.Message{{
			Role:    schema.RoleType(msg.Role),
			Content: content,
		}}
	}

	resultsByCallID := make(map[string]*db.ToolResultPart)
	for _, part := range msg.Parts {
		if part.Type == db.PartTypeToolResult && part.ToolResult != nil {
			resultsByCallID[part.ToolResult.ToolCallID] = part.ToolResult
		}
	}

	var (
		textContent string
		toolCalls   []schema.ToolCall
		toolResults []*schema.Message
	)
	for _, part := range msg.Parts {
		switch part.Type {
		case db.PartTypeText:
			if part.Text != "" {
				if textContent != "" {
					textContent += "\n"
				}
				textContent += part.Text
			}
		case db.PartTypeToolCall:
			if part.ToolCall == nil {
				continue
			}
			if _, hasResult := resultsByCallID[part.ToolCall.ID]; !hasResult {
				continue
			}
			toolCalls = append(toolCalls, schema.ToolCall{
				ID:   part.ToolCall.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      part.ToolCall.Name,
					Arguments: part.ToolCall.Arguments,
				},
			})
		case db.PartTypeToolResult:
			if part.ToolResult == nil {
				continue
			}
			toolResults = append(toolResults, &schema.Message{
				Role:       schema.Tool,
				ToolCallID: part.ToolResult.ToolCallID,
				ToolName:   part.ToolResult.Name,
				Content:    part.ToolResult.Content,
			})
		}
	}

	var result []*schema.Message
	if textContent != "" || len(toolCalls) > 0 {
		result = append(result, &schema.Message{
			Role:      schema.Assistant,
			Content:   textContent,
			ToolCalls: toolCalls,
		})
	}
	return append(result, toolResults...)
}
