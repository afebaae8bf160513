package service

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

func TestBuild_FreshConversation(t *testing.T) {
	store := newTestStore(t)
	builder := NewContextBuilder(store, testPolicy(nil))
	conv := seedConversation(t, store, "user-a")

	context, err := builder.Build(conv, "hello there")
	require.NoError(t, err)
	require.Len(t, context, 1)
	require.Equal(t, schema.User, context[0].Role)
	require.Equal(t, "hello there", context[0].Content)
}

func TestBuild_SummaryMessageComesFirst(t *testing.T) {
	store := newTestStore(t)
	builder := NewContextBuilder(store, testPolicy(nil))
	conv := seedConversation(t, store, "user-a")
	conv.PreviousSummary = strPtr("carried over facts")
	conv.Summary = strPtr("facts from this conversation")

	context, err := builder.Build(conv, "and now?")
	require.NoError(t, err)
	require.Len(t, context, 2)

	require.Equal(t, schema.Assistant, context[0].Role)
	require.Contains(t, context[0].Content, "carried over facts")
	require.Contains(t, context[0].Content, "facts from this conversation")
	require.Equal(t, "and now?", context[1].Content)
}

func TestBuild_WatermarkTailOnly(t *testing.T) {
	store := newTestStore(t)
	builder := NewContextBuilder(store, testPolicy(nil))
	conv := seedConversation(t, store, "user-a")
	base := time.Now().Add(-time.Hour)

	seedUserMessage(t, store, conv.ID, base)
	watermark := seedUserMessage(t, store, conv.ID, base.Add(time.Minute))
	tail := seedUserMessage(t, store, conv.ID, base.Add(2*time.Minute))

	conv.Summary = strPtr("early part")
	conv.LastSummarizedMessageID = &watermark.ID

	context, err := builder.Build(conv, "new question")
	require.NoError(t, err)
	// Summary, the single unsummarized message, the new turn.
	require.Len(t, context, 3)
	require.Equal(t, tail.GetTextContent(), context[1].Content)
	require.Equal(t, "new question", context[2].Content)
}

func TestBuild_RespectsHistoryLimit(t *testing.T) {
	store := newTestStore(t)
	policy := testPolicy(func(p *config.AssistantConfig) {
		p.MessageHistoryLimit = intPtr(2)
	})
	builder := NewContextBuilder(store, policy)
	conv := seedConversation(t, store, "user-a")
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedUserMessage(t, store, conv.ID, base.Add(time.Duration(i)*time.Minute))
	}

	context, err := builder.Build(conv, "latest")
	require.NoError(t, err)
	// Two most recent history messages plus the new turn.
	require.Len(t, context, 3)
}

func TestMessageToSchemaMessages_ToolCallsWithResults(t *testing.T) {
	msg := &db.Message{Role: db.RoleAssistant}
	msg.AddTextPart("let me check")
	msg.AddToolCallPart("call_1", "search_transactions", `{"status":"failed"}`)
	msg.AddToolResultPart("call_1", "search_transactions", `{"count":1}`)

	result := messageToSchemaMessages(msg)
	require.Len(t, result, 2)

	assistant := result[0]
	require.Equal(t, schema.Assistant, assistant.Role)
	require.Equal(t, "let me check", assistant.Content)
	require.Len(t, assistant.ToolCalls, 1)
	require.Equal(t, "search_transactions", assistant.ToolCalls[0].Function.Name)

	toolMsg := result[1]
	require.Equal(t, schema.Tool, toolMsg.Role)
	require.Equal(t, "call_1", toolMsg.ToolCallID)
	require.Equal(t, `{"count":1}`, toolMsg.Content)
}

func TestMessageToSchemaMessages_DropsUnresolvedToolCalls(t *testing.T) {
	msg := &db.Message{Role: db.RoleAssistant}
	msg.AddTextPart("partial answer")
	// The stream failed before a result was recorded.
	msg.AddToolCallPart("call_1", "get_revenue_summary", `{}`)

	result := messageToSchemaMessages(msg)
	require.Len(t, result, 1)
	require.Empty(t, result[0].ToolCalls)
	require.Equal(t, "partial answer", result[0].Content)
}

func TestMessageToSchemaMessages_EmptyMessageSkipped(t *testing.T) {
	require.Nil(t, messageToSchemaMessages(&db.Message{Role: db.RoleAssistant}))
	require.Nil(t, messageToSchemaMessages(&db.Message{Role: db.RoleUser}))
}
