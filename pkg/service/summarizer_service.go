// Summarization engine for bounded conversation context growth
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// Summarizer compresses a batch of messages into a rolling summary. The
// previous summary, when present, is folded into the new one.
type Summarizer interface {
	Summarize(ctx context.Context, messages []db.Message, previousSummary string) (string, error)
}

// SummarizationEngine decides after each turn whether accumulated token usage
// crosses the configured threshold, and if so replaces the unsummarized
// history with an updated rolling summary. Summarization is best-effort: it
// never fails the enclosing request.
type SummarizationEngine struct {
	store      *db.Store
	summarizer Summarizer
	policy     *config.AssistantConfig
	logger     *slog.Logger
}

// NewSummarizationEngine creates the engine.
func NewSummarizationEngine(store *db.Store, summarizer Summarizer, policy *config.AssistantConfig) *SummarizationEngine {
	return &SummarizationEngine{
		store:      store,
		summarizer: summarizer,
		policy:     policy,
		logger:     utils.GetLogger(),
	}
}

// MaybeSummarize accumulates this turn's token usage and runs a summarization
// pass when due. The accumulated total is persisted immediately, before any
// summarization attempt, so token accounting survives summarizer failures and
// process restarts. The returned conversation reflects whatever was persisted.
func (e *SummarizationEngine) MaybeSummarize(ctx context.Context, conv *db.Conversation, tokensThisTurn int) *db.Conversation {
	conv.TotalTokensUsed += tokensThisTurn
	if err := e.store.SaveConversationFields(conv.ID, map[string]interface{}{
		"total_tokens_used": conv.TotalTokensUsed,
	}); err != nil {
		e.logger.Error("Failed to persist token usage", "conversationID", conv.ID, "error", err)
		return conv
	}

	threshold := e.policy.SummarizationThreshold()
	if conv.TotalTokensUsed < threshold {
		return conv
	}
	if conv.SummaryCount >= e.policy.Summaries() {
		return conv
	}

	var (
		messages []db.Message
		err      error
	)
	if conv.LastSummarizedMessageID != nil {
		messages, err = e.store.FindMessagesAfter(conv.ID, *conv.LastSummarizedMessageID)
	} else {
		messages, err = e.store.FindMessages(conv.ID)
	}
	if err != nil {
		e.logger.Error("Failed to fetch unsummarized messages", "conversationID", conv.ID, "error", err)
		return conv
	}
	if len(messages) == 0 {
		return conv
	}

	newSummary, err := e.summarizer.Summarize(ctx, messages, conv.SummaryText())
	if err != nil {
		// Best-effort: the conversation continues unsummarized and open.
		e.logger.Warn("Summarization failed, conversation continues unsummarized",
			"conversationID", conv.ID, "error", err)
		return conv
	}

	watermark := watermarkFor(messages)
	summaryCount := conv.SummaryCount + 1
	isClosed := summaryCount >= e.policy.Summaries()

	if err := e.store.SaveConversationFields(conv.ID, map[string]interface{}{
		"summary":                    newSummary,
		"last_summarized_message_id": watermark,
		"summary_count":              summaryCount,
		"is_closed":                  isClosed,
		"total_tokens_used":          0,
	}); err != nil {
		e.logger.Error("Failed to persist summarization result", "conversationID", conv.ID, "error", err)
		return conv
	}

	conv.Summary = &newSummary
	conv.LastSummarizedMessageID = &watermark
	conv.SummaryCount = summaryCount
	conv.IsClosed = isClosed
	conv.TotalTokensUsed = 0

	e.logger.Info("Conversation summarized",
		"conversationID", conv.ID,
		"summaryCount", summaryCount,
		"messagesSummarized", len(messages),
		"closed", isClosed)

	return conv
}

// watermarkFor picks the id the watermark advances to: the last user message
// in the batch, falling back to the last message overall.
func watermarkFor(messages []db.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == db.RoleUser {
			return messages[i].ID
		}
	}
	return messages[len(messages)-1].ID
}

// ========== Model-backed summarizer ==========

// ModelSummarizer produces the rolling summary with a chat model.
type ModelSummarizer struct {
	modelService *ModelService
	logger       *slog.Logger
}

// NewModelSummarizer creates the model-backed summarizer.
func NewModelSummarizer(modelService *ModelService) *ModelSummarizer {
	return &ModelSummarizer{
		modelService: modelService,
		logger:       utils.GetLogger(),
	}
}

// Summarize implements Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, messages []db.Message, previousSummary string) (string, error) {
	chatModel, err := s.modelService.SummarizerModel(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create summarizer model: %w", err)
	}

	var convText strings.Builder
	for _, msg := range messages {
		if content := msg.GetTextContent(); content != "" {
			convText.WriteString(fmt.Sprintf("[%s]: %s\n\n", msg.Role, content))
		}
	}

	var sb strings.Builder
	sb.WriteString("Summarize the following assistant conversation for use as rolling context. ")
	sb.WriteString("Preserve concrete facts the user stated, questions they asked, answers given, ")
	sb.WriteString("and any amounts, dates, or resource references. Be objective and concise.\n\n")
	if previousSummary != "" {
		sb.WriteString("An earlier portion of this conversation was already summarized as:\n")
		sb.WriteString(previousSummary)
		sb.WriteString("\n\nFold that summary into the new one.\n\n")
	}
	sb.WriteString("Conversation:\n")
	sb.WriteString(convText.String())
	sb.WriteString("\nOutput the summary text only, no preamble:")

	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(sb.String())})
	if err != nil {
		return "", fmt.Errorf("summarizer generation failed: %w", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty content")
	}
	return summary, nil
}
