// Conversation orchestration: lifecycle, gating, streaming generation
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/models"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/tools"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to another user. Callers cannot tell the two apart.
var ErrConversationNotFound = db.ErrNotFound

const defaultConversationTitle = "New conversation"

// ChatService orchestrates one user turn end to end: lifecycle checks, the
// entitlement and scope gates, context assembly, streaming generation,
// persistence, and post-turn summarization.
//
// The service holds no per-conversation state in memory. Every request
// re-derives conversation state from the store; concurrent sends to the same
// conversation race at the store with last-writer-wins semantics.
type ChatService struct {
	store          *db.Store
	policy         *config.AssistantConfig
	entitlement    *EntitlementService
	classifier     Classifier
	contextBuilder *ContextBuilder
	summarization  *SummarizationEngine
	runtime        ModelRuntime
	modelService   *ModelService
	source         tools.DashboardSource
	logger         *slog.Logger
}

// NewChatService wires the orchestrator.
func NewChatService(
	store *db.Store,
	policy *config.AssistantConfig,
	entitlement *EntitlementService,
	classifier Classifier,
	contextBuilder *ContextBuilder,
	summarization *SummarizationEngine,
	runtime ModelRuntime,
	modelService *ModelService,
	source tools.DashboardSource,
) *ChatService {
	return &ChatService{
		store:          store,
		policy:         policy,
		entitlement:    entitlement,
		classifier:     classifier,
		contextBuilder: contextBuilder,
		summarization:  summarization,
		runtime:        runtime,
		modelService:   modelService,
		source:         source,
		logger:         utils.GetLogger(),
	}
}

// SendMessage handles one user turn and returns the response stream. Errors
// returned here happened before anything was persisted; once the channel is
// returned, failures surface as error chunks on it.
//
// The returned channel is always closed by the service. Callers must drain it
// even if they stop forwarding chunks: generation, persistence, and
// summarization continue regardless of what the caller does.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req *models.SendMessageRequest) (<-chan *models.StreamChunk, error) {
	if err := validateSendRequest(req); err != nil {
		return nil, err
	}

	conv, err := s.findConversation(userID, req)
	if err != nil {
		return nil, err
	}

	// A closed conversation answers with a fixed notice: no quota consumed,
	// no classification, nothing persisted.
	if conv != nil && conv.IsClosed {
		return s.streamStaticResponse(conv.ID, s.policy.ClosedMessage()), nil
	}

	if err := s.entitlement.CheckEntitlement(userID); err != nil {
		return nil, err
	}

	// First use of this id. Creation waits until the gates above have passed
	// so a rejected turn leaves no row behind.
	if conv == nil {
		conv, err = s.createConversation(userID, req)
		if err != nil {
			return nil, err
		}
	}

	history, err := s.store.FindRecentMessages(conv.ID, s.policy.HistoryLimit())
	if err != nil {
		return nil, err
	}

	verdict := s.classifier.Classify(ctx, history, req.Message, conv.PageContext())
	s.logger.Debug("Turn classified",
		"conversationID", conv.ID,
		"intent", verdict.Intent,
		"confidence", verdict.Confidence)

	// A refusal verdict below the confidence threshold gets the benefit of
	// the doubt and proceeds to generation.
	if verdict.IsRefusal() && verdict.Confidence >= s.policy.Threshold() {
		return s.handleRefusal(conv, req.Message, verdict)
	}

	// Assemble the model context before the new user turn is persisted, so
	// the history fetch cannot pick it up twice.
	modelContext, err := s.contextBuilder.Build(conv, req.Message)
	if err != nil {
		return nil, err
	}

	userMsg := newUserMessage(conv.ID, req.Message)
	if err := s.store.CreateMessages([]*db.Message{userMsg}); err != nil {
		return nil, err
	}
	s.touch(conv)

	return s.streamGeneration(ctx, conv, userMsg, modelContext), nil
}

// validateSendRequest rejects malformed turns before any state is read.
func validateSendRequest(req *models.SendMessageRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return models.NewValidationError("message must not be empty")
	}
	if _, err := uuid.Parse(req.ConversationID); err != nil {
		return models.NewValidationError("conversation_id must be a UUID")
	}

	mode := req.Mode
	if mode == "" {
		mode = db.ModeGlobal
	}
	switch mode {
	case db.ModeGlobal:
		if req.PageContext != nil {
			return models.NewValidationError("page_context is only valid in page mode")
		}
	case db.ModePage:
		if req.PageContext == nil ||
			strings.TrimSpace(req.PageContext.ResourceType) == "" ||
			strings.TrimSpace(req.PageContext.ResourceID) == "" {
			return models.NewValidationError("page mode requires page_context with resource_type and resource_id")
		}
	default:
		return models.NewValidationError("unknown mode %q", req.Mode)
	}
	return nil
}

// findConversation loads the caller's conversation, or returns nil when the
// id is unused and free for them to claim. An id owned by another user is
// indistinguishable from a missing one, but is never hijacked by creating
// over it.
func (s *ChatService) findConversation(userID string, req *models.SendMessageRequest) (*db.Conversation, error) {
	conv, err := s.store.FindByIDAndUser(req.ConversationID, userID)
	if err == nil {
		if err := checkModeConsistency(conv, req); err != nil {
			return nil, err
		}
		return conv, nil
	}
	if !pkgerrors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	exists, err := s.store.ConversationExists(req.ConversationID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConversationNotFound
	}
	return nil, nil
}

// createConversation claims a new id for the caller.
func (s *ChatService) createConversation(userID string, req *models.SendMessageRequest) (*db.Conversation, error) {
	mode := req.Mode
	if mode == "" {
		mode = db.ModeGlobal
	}
	now := time.Now()
	conv := &db.Conversation{
		ID:             req.ConversationID,
		UserID:         userID,
		Title:          defaultConversationTitle,
		Mode:           mode,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Duration(s.policy.TTLHours()) * time.Hour),
	}
	if mode == db.ModePage {
		conv.PageResourceType = &req.PageContext.ResourceType
		conv.PageResourceID = &req.PageContext.ResourceID
	}
	if err := s.store.CreateConversation(conv); err != nil {
		return nil, err
	}

	s.logger.Info("Conversation created",
		"conversationID", conv.ID, "userID", userID, "mode", mode)
	return conv, nil
}

// checkModeConsistency rejects sends whose mode or page context disagrees
// with what the conversation was created with. Both are immutable.
func checkModeConsistency(conv *db.Conversation, req *models.SendMessageRequest) error {
	if req.Mode != "" && req.Mode != conv.Mode {
		return models.NewValidationError("conversation is in %s mode", conv.Mode)
	}
	if req.PageContext != nil {
		pinned := conv.PageContext()
		if pinned == nil {
			return models.NewValidationError("conversation is in %s mode", conv.Mode)
		}
		if pinned.ResourceType != req.PageContext.ResourceType ||
			pinned.ResourceID != req.PageContext.ResourceID {
			return models.NewValidationError("conversation is pinned to %s %s",
				pinned.ResourceType, pinned.ResourceID)
		}
	}
	return nil
}

// ========== Response paths ==========

// streamStaticResponse emits a fixed message as a minimal stream. Nothing is
// persisted.
func (s *ChatService) streamStaticResponse(conversationID, text string) <-chan *models.StreamChunk {
	out := make(chan *models.StreamChunk, 2)
	out <- &models.StreamChunk{ConversationID: conversationID, Type: models.ChunkTypeContent, Content: text}
	out <- &models.StreamChunk{ConversationID: conversationID, Type: models.ChunkTypeDone}
	close(out)
	return out
}

// handleRefusal persists the user turn and a canned refusal turn, then
// streams the refusal. No model generation happens and no tokens accrue.
func (s *ChatService) handleRefusal(conv *db.Conversation, message string, verdict models.Classification) (<-chan *models.StreamChunk, error) {
	text := s.policy.OutOfScopeMessage()
	if verdict.Intent == models.IntentOutOfPageScope {
		resourceType := "resource"
		if pc := conv.PageContext(); pc != nil {
			resourceType = pc.ResourceType
		}
		text = s.policy.OutOfPageScopeMessage(resourceType)
	}

	userMsg := newUserMessage(conv.ID, message)
	refusal := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           db.RoleAssistant,
		Status:         db.MessageStatusCompleted,
		CreatedAt:      time.Now(),
	}
	refusal.AddTextPart(text)

	if err := s.store.CreateMessages([]*db.Message{userMsg, refusal}); err != nil {
		return nil, err
	}
	s.touch(conv)

	s.logger.Info("Turn refused",
		"conversationID", conv.ID,
		"intent", verdict.Intent,
		"confidence", verdict.Confidence)

	out := make(chan *models.StreamChunk, 2)
	out <- &models.StreamChunk{ConversationID: conv.ID, MessageID: refusal.ID, Type: models.ChunkTypeContent, Content: text}
	out <- &models.StreamChunk{ConversationID: conv.ID, MessageID: refusal.ID, Type: models.ChunkTypeDone}
	close(out)
	return out, nil
}

// streamGeneration runs the model turn in the background and returns its
// stream. The generation context is detached from the request context: a
// client disconnect stops delivery, never generation or persistence.
func (s *ChatService) streamGeneration(ctx context.Context, conv *db.Conversation, userMsg *db.Message, modelContext []*schema.Message) <-chan *models.StreamChunk {
	assistantMsg := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           db.RoleAssistant,
		Status:         db.MessageStatusStreaming,
		CreatedAt:      time.Now(),
	}
	out := make(chan *models.StreamChunk, 64)

	genCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		s.runGeneration(genCtx, conv, userMsg, assistantMsg, modelContext, out)
	}()
	return out
}

func (s *ChatService) runGeneration(ctx context.Context, conv *db.Conversation, userMsg, assistantMsg *db.Message, modelContext []*schema.Message, out chan<- *models.StreamChunk) {
	if err := s.store.SaveMessage(assistantMsg); err != nil {
		s.logger.Error("Failed to create assistant message", "conversationID", conv.ID, "error", err)
		out <- s.errorChunk(conv.ID, assistantMsg.ID, err)
		return
	}

	toolCtx := &tools.ToolContext{
		UserID:      conv.UserID,
		PageContext: conv.PageContext(),
		Source:      s.source,
	}
	input := &GenerationInput{
		SystemPrompt: s.buildSystemPrompt(conv),
		Messages:     modelContext,
		Tools:        tools.ToolsForMode(conv.Mode, toolCtx),
	}

	stream, err := s.runtime.Stream(ctx, input)
	if err != nil {
		s.failAssistantMessage(assistantMsg, err)
		out <- s.errorChunk(conv.ID, assistantMsg.ID, err)
		return
	}
	defer stream.Close()

	var usage *db.TokenUsage
	var textBuf strings.Builder
	flushText := func() {
		if textBuf.Len() > 0 {
			assistantMsg.AddTextPart(textBuf.String())
			textBuf.Reset()
		}
	}

	for {
		event, recvErr := stream.Recv()
		if recvErr != nil {
			if isStreamEnd(recvErr) {
				break
			}
			// Keep whatever was generated before the failure.
			flushText()
			s.failAssistantMessage(assistantMsg, recvErr)
			out <- s.errorChunk(conv.ID, assistantMsg.ID, recvErr)
			return
		}

		switch {
		case event.Text != "":
			textBuf.WriteString(event.Text)
			out <- &models.StreamChunk{
				ConversationID: conv.ID,
				MessageID:      assistantMsg.ID,
				Type:           models.ChunkTypeContent,
				Content:        event.Text,
			}
		case event.ToolCall != nil:
			flushText()
			assistantMsg.AddToolCallPart(event.ToolCall.ID, event.ToolCall.Name, event.ToolCall.Arguments)
			out <- &models.StreamChunk{
				ConversationID: conv.ID,
				MessageID:      assistantMsg.ID,
				Type:           models.ChunkTypeToolCall,
				ToolCall:       event.ToolCall,
			}
		case event.ToolResult != nil:
			assistantMsg.AddToolResultPart(event.ToolResult.ToolCallID, event.ToolResult.Name, event.ToolResult.Content)
			out <- &models.StreamChunk{
				ConversationID: conv.ID,
				MessageID:      assistantMsg.ID,
				Type:           models.ChunkTypeToolResult,
				ToolResult:     event.ToolResult,
			}
		case event.Usage != nil:
			usage = event.Usage
		}
	}
	flushText()

	assistantMsg.Status = db.MessageStatusCompleted
	assistantMsg.Usage = usage
	if err := s.store.SaveMessage(assistantMsg); err != nil {
		s.logger.Error("Failed to persist assistant message", "conversationID", conv.ID, "error", err)
		out <- s.errorChunk(conv.ID, assistantMsg.ID, err)
		return
	}

	out <- &models.StreamChunk{
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Type:           models.ChunkTypeDone,
		Usage:          usage,
	}

	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}
	s.summarization.MaybeSummarize(ctx, conv, tokens)

	if conv.Title == defaultConversationTitle {
		s.generateTitle(ctx, conv, userMsg.GetTextContent(), assistantMsg.GetTextContent())
	}
}

// failAssistantMessage persists whatever content accumulated before a
// generation failure, marked with error status.
func (s *ChatService) failAssistantMessage(msg *db.Message, cause error) {
	s.logger.Error("Generation failed", "conversationID", msg.ConversationID, "messageID", msg.ID, "error", cause)
	msg.Status = db.MessageStatusError
	if err := s.store.SaveMessage(msg); err != nil {
		s.logger.Error("Failed to persist partial assistant message", "messageID", msg.ID, "error", err)
	}
}

func (s *ChatService) errorChunk(conversationID, messageID string, err error) *models.StreamChunk {
	return &models.StreamChunk{
		ConversationID: conversationID,
		MessageID:      messageID,
		Type:           models.ChunkTypeError,
		Error:          (&models.UpstreamError{Op: "generate response", Err: err}).Error(),
	}
}

func isStreamEnd(err error) bool {
	return pkgerrors.Is(err, io.EOF)
}

// buildSystemPrompt renders the assistant instructions for the conversation
// mode. Page conversations carry their pinned resource so the model stays on
// topic and can resolve references like "this transaction".
func (s *ChatService) buildSystemPrompt(conv *db.Conversation) string {
	var sb strings.Builder
	sb.WriteString("You are the merchant dashboard assistant. You answer questions about the ")
	sb.WriteString("merchant's own dashboard data, how the product works, and their account standing. ")
	sb.WriteString("Use the provided tools to fetch real data instead of guessing; amounts are in ")
	sb.WriteString("minor currency units. Be concise and factual.")

	if pc := conv.PageContext(); pc != nil {
		sb.WriteString(fmt.Sprintf("\n\nThis conversation is pinned to %s %s. ", pc.ResourceType, pc.ResourceID))
		sb.WriteString("Interpret references like \"this one\" as that resource.")
	}
	return sb.String()
}

// generateTitle derives a short conversation title from the first exchange.
// Best-effort: failures leave the default title in place.
func (s *ChatService) generateTitle(ctx context.Context, conv *db.Conversation, userText, assistantText string) {
	if s.modelService == nil {
		return
	}
	chatModel, err := s.modelService.ClassifierModel(ctx)
	if err != nil {
		s.logger.Warn("Title model unavailable", "conversationID", conv.ID, "error", err)
		return
	}

	prompt := fmt.Sprintf(
		"Write a title of at most 6 words for this assistant conversation. Output the title only.\n\nUser: %s\n\nAssistant: %s",
		truncate(userText, 500), truncate(assistantText, 500))
	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		s.logger.Warn("Title generation failed", "conversationID", conv.ID, "error", err)
		return
	}

	title := strings.Trim(strings.TrimSpace(resp.Content), `"`)
	if title == "" {
		return
	}
	title = truncate(title, 200)
	if err := s.store.SaveConversationFields(conv.ID, map[string]interface{}{"title": title}); err != nil {
		s.logger.Warn("Failed to save title", "conversationID", conv.ID, "error", err)
		return
	}
	conv.Title = title
}

// ========== Continuation ==========

// ContinueConversation opens a fresh conversation from a closed one, carrying
// the final summary forward as background context. The new conversation keeps
// the mode and page pinning of the old one and starts with a clean summary
// budget.
func (s *ChatService) ContinueConversation(userID, conversationID string, req *models.ContinueConversationRequest) (*db.Conversation, error) {
	old, err := s.store.FindByIDAndUser(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !old.IsClosed {
		return nil, models.NewValidationError("conversation is still open")
	}

	newID := req.NewConversationID
	if newID == "" {
		newID = uuid.NewString()
	} else if _, err := uuid.Parse(newID); err != nil {
		return nil, models.NewValidationError("new_conversation_id must be a UUID")
	}
	if exists, err := s.store.ConversationExists(newID); err != nil {
		return nil, err
	} else if exists {
		return nil, models.NewValidationError("conversation %s already exists", newID)
	}

	// The most recent summary wins; a closed conversation always has one
	// unless it was closed before ever summarizing.
	var carried *string
	if old.Summary != nil {
		carried = old.Summary
	} else {
		carried = old.PreviousSummary
	}

	now := time.Now()
	fresh := &db.Conversation{
		ID:               newID,
		UserID:           userID,
		Title:            old.Title,
		Mode:             old.Mode,
		PageResourceType: old.PageResourceType,
		PageResourceID:   old.PageResourceID,
		PreviousSummary:  carried,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(time.Duration(s.policy.TTLHours()) * time.Hour),
	}
	if err := s.store.CreateConversation(fresh); err != nil {
		return nil, err
	}

	s.logger.Info("Conversation continued",
		"from", old.ID, "to", fresh.ID, "userID", userID)
	return fresh, nil
}

// ========== Reads and deletes ==========

// GetConversation returns one of the user's conversations.
func (s *ChatService) GetConversation(userID, conversationID string) (*db.Conversation, error) {
	return s.store.FindByIDAndUser(conversationID, userID)
}

// ListConversations returns a page of the user's conversations.
func (s *ChatService) ListConversations(userID string, limit, offset int) (*models.ConversationListResponse, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	conversations, hasMore, err := s.store.ListConversations(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &models.ConversationListResponse{Conversations: conversations, HasMore: hasMore}, nil
}

// GetMessages returns a conversation's full message history.
func (s *ChatService) GetMessages(userID, conversationID string) (*models.MessageListResponse, error) {
	if _, err := s.store.FindByIDAndUser(conversationID, userID); err != nil {
		return nil, err
	}
	messages, err := s.store.FindMessages(conversationID)
	if err != nil {
		return nil, err
	}
	return &models.MessageListResponse{Messages: messages}, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *ChatService) DeleteConversation(userID, conversationID string) error {
	return s.store.DeleteByIDForUser(conversationID, userID)
}

// ========== Helpers ==========

func newUserMessage(conversationID, text string) *db.Message {
	msg := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           db.RoleUser,
		Status:         db.MessageStatusCompleted,
		CreatedAt:      time.Now(),
	}
	msg.AddTextPart(text)
	return msg
}

func (s *ChatService) touch(conv *db.Conversation) {
	ttl := time.Duration(s.policy.TTLHours()) * time.Hour
	if err := s.store.TouchActivity(conv.ID, ttl); err != nil {
		s.logger.Warn("Failed to refresh conversation activity", "conversationID", conv.ID, "error", err)
	}
}

// truncate trims s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
