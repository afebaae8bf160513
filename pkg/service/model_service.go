package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// ModelService creates eino chat models from the configured provider. The
// main chat model, the classifier model, and the summarizer model may differ
// (the latter two are typically smaller).
type ModelService struct {
	cfg    *config.ModelConfig
	logger *slog.Logger
}

// NewModelService creates a model service over the process model config.
func NewModelService(cfg *config.ModelConfig) *ModelService {
	return &ModelService{
		cfg:    cfg,
		logger: utils.GetLogger(),
	}
}

// ChatModel creates the tool-calling model used for response generation.
func (m *ModelService) ChatModel(ctx context.Context) (einoModel.ToolCallingChatModel, error) {
	return m.create(ctx, m.cfg.GetChatModel())
}

// ClassifierModel creates the model used by the classification gate.
func (m *ModelService) ClassifierModel(ctx context.Context) (einoModel.ToolCallingChatModel, error) {
	return m.create(ctx, m.cfg.GetClassifierModel())
}

// SummarizerModel creates the model used by the summarization engine.
func (m *ModelService) SummarizerModel(ctx context.Context) (einoModel.ToolCallingChatModel, error) {
	return m.create(ctx, m.cfg.GetSummarizerModel())
}

func (m *ModelService) create(ctx context.Context, modelName string) (einoModel.ToolCallingChatModel, error) {
	switch provider := m.cfg.GetProvider(); provider {
	case "openai", "custom":
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: m.cfg.GetBaseURL(),
			APIKey:  m.cfg.GetApiKey(),
			Model:   modelName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return chatModel, nil

	case "anthropic":
		baseURL := m.cfg.GetBaseURL()
		cfg := &claude.Config{
			APIKey:    m.cfg.GetApiKey(),
			Model:     modelName,
			MaxTokens: 8192,
		}
		if baseURL != "" {
			cfg.BaseURL = &baseURL
		}
		chatModel, err := claude.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude model: %w", err)
		}
		return chatModel, nil

	case "google":
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  m.cfg.GetApiKey(),
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: genaiClient,
			Model:  modelName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini model: %w", err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}
}
