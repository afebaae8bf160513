// Model/tool runtime boundary for response generation
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// GenerationEvent is one unit of model output. Exactly one payload field is
// set per event; Usage arrives on the final event of a successful stream.
type GenerationEvent struct {
	Text       string
	ToolCall   *db.ToolCallPart
	ToolResult *db.ToolResultPart
	Usage      *db.TokenUsage
}

// GenerationInput carries everything one generation needs. Tool dispatch,
// input validation, and per-tool auth context all live behind this boundary.
type GenerationInput struct {
	SystemPrompt string
	Messages     []*schema.Message
	Tools        []tool.BaseTool
}

// ModelRuntime streams a tool-augmented model response. The orchestrator
// consumes text/tool events and the final usage total; everything else about
// the model call is owned by the implementation.
type ModelRuntime interface {
	Stream(ctx context.Context, in *GenerationInput) (*schema.StreamReader[*GenerationEvent], error)
}

// AgentRuntime is the production ModelRuntime on an eino agent.
type AgentRuntime struct {
	modelService *ModelService
	logger       *slog.Logger
}

// NewAgentRuntime creates the runtime.
func NewAgentRuntime(modelService *ModelService) *AgentRuntime {
	return &AgentRuntime{
		modelService: modelService,
		logger:       utils.GetLogger(),
	}
}

const maxAgentIterations = 20

// Stream implements ModelRuntime.
func (r *AgentRuntime) Stream(ctx context.Context, in *GenerationInput) (*schema.StreamReader[*GenerationEvent], error) {
	chatModel, err := r.modelService.ChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	agent, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:          "Command Centre Assistant",
		Description:   "Answers dashboard, payments, and account questions for a merchant",
		Instruction:   in.SystemPrompt,
		Model:         chatModel,
		ToolsConfig:   adk.ToolsConfig{ToolsNodeConfig: compose.ToolsNodeConfig{Tools: in.Tools}},
		MaxIterations: maxAgentIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sr, sw := schema.Pipe[*GenerationEvent](64)

	go func() {
		defer sw.Close()
		usage, err := r.run(ctx, agent, in.Messages, sw)
		if err != nil {
			sw.Send(nil, err)
			return
		}
		sw.Send(&GenerationEvent{Usage: usage}, nil)
	}()

	return sr, nil
}

// run drives the agent iterator, forwarding deltas and tool activity to the
// writer and accumulating the usage total across rounds.
func (r *AgentRuntime) run(ctx context.Context, agent adk.Agent, history []*schema.Message, sw *schema.StreamWriter[*GenerationEvent]) (*db.TokenUsage, error) {
	iter := agent.Run(ctx, &adk.AgentInput{Messages: history, EnableStreaming: true})
	usage := &db.TokenUsage{}

	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return nil, fmt.Errorf("agent error: %w", event.Err)
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		switch event.Output.MessageOutput.Role {
		case schema.Tool:
			fullMsg, err := event.Output.MessageOutput.GetMessage()
			if err != nil {
				r.logger.Error("Failed to read tool result message", "error", err)
				continue
			}
			sw.Send(&GenerationEvent{ToolResult: &db.ToolResultPart{
				ToolCallID: fullMsg.ToolCallID,
				Name:       fullMsg.ToolName,
				Content:    fullMsg.Content,
			}}, nil)

		case schema.Assistant:
			var chunks []*schema.Message
			if event.Output.MessageOutput.MessageStream != nil {
				for {
					chunk, err := event.Output.MessageOutput.MessageStream.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						return nil, fmt.Errorf("stream error: %w", err)
					}
					chunks = append(chunks, chunk)
					if chunk.Content != "" {
						sw.Send(&GenerationEvent{Text: chunk.Content}, nil)
					}
				}
			} else {
				msg, err := event.Output.MessageOutput.GetMessage()
				if err != nil {
					return nil, fmt.Errorf("failed to read assistant message: %w", err)
				}
				if msg.Content != "" {
					sw.Send(&GenerationEvent{Text: msg.Content}, nil)
				}
				chunks = append(chunks, msg)
			}
			if len(chunks) == 0 {
				continue
			}

			streamedMsg, err := schema.ConcatMessages(chunks)
			if err != nil {
				return nil, fmt.Errorf("failed to concat messages: %w", err)
			}
			for _, tc := range streamedMsg.ToolCalls {
				sw.Send(&GenerationEvent{ToolCall: &db.ToolCallPart{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}}, nil)
			}
			if streamedMsg.ResponseMeta != nil && streamedMsg.ResponseMeta.Usage != nil {
				usage.PromptTokens += streamedMsg.ResponseMeta.Usage.PromptTokens
				usage.CompletionTokens += streamedMsg.ResponseMeta.Usage.CompletionTokens
				usage.TotalTokens += streamedMsg.ResponseMeta.Usage.TotalTokens
			}
		}
	}

	return usage, nil
}
