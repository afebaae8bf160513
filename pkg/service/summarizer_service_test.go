package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

type fakeSummarizer struct {
	summary string
	err     error

	calls       int
	gotMessages []db.Message
	gotPrevious string
}

func (f *fakeSummarizer) Summarize(_ context.Context, messages []db.Message, previousSummary string) (string, error) {
	f.calls++
	f.gotMessages = messages
	f.gotPrevious = previousSummary
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

// Threshold works out to 500 tokens, cap at 2 summaries.
func summarizationPolicy() *config.AssistantConfig {
	return testPolicy(func(p *config.AssistantConfig) {
		p.ContextWindowSize = intPtr(1000)
		p.TokenThresholdPercentage = floatPtr(0.5)
		p.MaxSummaries = intPtr(2)
	})
}

func seedAssistantMessage(t *testing.T, store *db.Store, conversationID string, createdAt time.Time) *db.Message {
	t.Helper()
	msg := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           db.RoleAssistant,
		Status:         db.MessageStatusCompleted,
		CreatedAt:      createdAt,
	}
	msg.AddTextPart("assistant reply")
	require.NoError(t, store.CreateMessages([]*db.Message{msg}))
	return msg
}

func TestMaybeSummarize_BelowThresholdAccumulates(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{summary: "unused"}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	got := engine.MaybeSummarize(context.Background(), conv, 200)

	require.Equal(t, 200, got.TotalTokensUsed)
	require.Zero(t, summarizer.calls)

	// The running total is persisted even though nothing was summarized.
	reloaded, err := store.FindByIDAndUser(conv.ID, "user-a")
	require.NoError(t, err)
	require.Equal(t, 200, reloaded.TotalTokensUsed)
	require.Nil(t, reloaded.Summary)
}

func TestMaybeSummarize_CrossingThresholdSummarizes(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{summary: "what happened so far"}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	base := time.Now().Add(-time.Hour)
	seedUserMessage(t, store, conv.ID, base)
	seedAssistantMessage(t, store, conv.ID, base.Add(time.Minute))
	lastUser := seedUserMessage(t, store, conv.ID, base.Add(2*time.Minute))
	seedAssistantMessage(t, store, conv.ID, base.Add(3*time.Minute))

	conv.TotalTokensUsed = 400
	got := engine.MaybeSummarize(context.Background(), conv, 150)

	require.Equal(t, 1, summarizer.calls)
	require.Len(t, summarizer.gotMessages, 4)
	require.Empty(t, summarizer.gotPrevious)

	require.NotNil(t, got.Summary)
	require.Equal(t, "what happened so far", *got.Summary)
	require.Equal(t, 1, got.SummaryCount)
	require.False(t, got.IsClosed)
	require.Zero(t, got.TotalTokensUsed)

	// Watermark lands on the last user message of the batch, not the last
	// message overall.
	require.NotNil(t, got.LastSummarizedMessageID)
	require.Equal(t, lastUser.ID, *got.LastSummarizedMessageID)

	reloaded, err := store.FindByIDAndUser(conv.ID, "user-a")
	require.NoError(t, err)
	require.Equal(t, got.SummaryCount, reloaded.SummaryCount)
	require.Equal(t, lastUser.ID, *reloaded.LastSummarizedMessageID)
	require.Zero(t, reloaded.TotalTokensUsed)
}

func TestMaybeSummarize_SecondPassClosesAtCap(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{summary: "second rolling summary"}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	base := time.Now().Add(-time.Hour)
	watermark := seedUserMessage(t, store, conv.ID, base)
	seedAssistantMessage(t, store, conv.ID, base.Add(time.Minute))
	seedUserMessage(t, store, conv.ID, base.Add(2*time.Minute))

	firstSummary := "first rolling summary"
	require.NoError(t, store.SaveConversationFields(conv.ID, map[string]interface{}{
		"summary":                    firstSummary,
		"last_summarized_message_id": watermark.ID,
		"summary_count":              1,
	}))
	conv.Summary = &firstSummary
	conv.LastSummarizedMessageID = &watermark.ID
	conv.SummaryCount = 1
	conv.TotalTokensUsed = 450

	got := engine.MaybeSummarize(context.Background(), conv, 100)

	require.Equal(t, 1, summarizer.calls)
	// Only the messages after the previous watermark are summarized, and the
	// old summary is folded in.
	require.Len(t, summarizer.gotMessages, 2)
	require.Equal(t, firstSummary, summarizer.gotPrevious)

	require.Equal(t, 2, got.SummaryCount)
	require.True(t, got.IsClosed)
	require.Equal(t, "second rolling summary", *got.Summary)

	reloaded, err := store.FindByIDAndUser(conv.ID, "user-a")
	require.NoError(t, err)
	require.True(t, reloaded.IsClosed)
}

func TestMaybeSummarize_AtCapDoesNothing(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{summary: "unused"}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	conv.SummaryCount = 2
	conv.TotalTokensUsed = 900

	got := engine.MaybeSummarize(context.Background(), conv, 100)

	require.Zero(t, summarizer.calls)
	require.Equal(t, 1000, got.TotalTokensUsed)
}

func TestMaybeSummarize_FailureKeepsConversationOpen(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{err: errors.New("model unavailable")}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	seedUserMessage(t, store, conv.ID, time.Now().Add(-time.Minute))
	conv.TotalTokensUsed = 600

	got := engine.MaybeSummarize(context.Background(), conv, 50)

	require.Equal(t, 1, summarizer.calls)
	require.Nil(t, got.Summary)
	require.Zero(t, got.SummaryCount)
	require.False(t, got.IsClosed)

	// Tokens survive the failure so the next turn retries.
	reloaded, err := store.FindByIDAndUser(conv.ID, "user-a")
	require.NoError(t, err)
	require.Equal(t, 650, reloaded.TotalTokensUsed)
	require.Nil(t, reloaded.Summary)
}

func TestMaybeSummarize_NoMessagesSkips(t *testing.T) {
	store := newTestStore(t)
	summarizer := &fakeSummarizer{summary: "unused"}
	engine := NewSummarizationEngine(store, summarizer, summarizationPolicy())

	conv := seedConversation(t, store, "user-a")
	got := engine.MaybeSummarize(context.Background(), conv, 600)

	require.Zero(t, summarizer.calls)
	require.Equal(t, 600, got.TotalTokensUsed)
}

func TestWatermarkFor_FallsBackToLastMessage(t *testing.T) {
	first := db.Message{ID: "m1", Role: db.RoleAssistant}
	second := db.Message{ID: "m2", Role: db.RoleAssistant}

	require.Equal(t, "m2", watermarkFor([]db.Message{first, second}))

	user := db.Message{ID: "m3", Role: db.RoleUser}
	require.Equal(t, "m3", watermarkFor([]db.Message{first, user, second}))
}
