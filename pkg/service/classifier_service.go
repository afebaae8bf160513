// Intent classification gate for the assistant scope policy
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/models"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// Classifier decides the intent of the latest user turn. Implementations
// must never fail: any internal error degrades to an out-of-scope verdict
// with zero confidence, so the caller always gets a deterministic result.
type Classifier interface {
	Classify(ctx context.Context, history []db.Message, newMessage string, pageContext *db.PageContext) models.Classification
}

// How many trailing turns the classifier sees. Intent rarely depends on more.
const classifierHistoryWindow = 6

// ModelClassifier classifies with a small chat model prompted for a JSON
// verdict.
type ModelClassifier struct {
	modelService *ModelService
	policy       *config.AssistantConfig
	logger       *slog.Logger
}

// NewModelClassifier creates the model-backed classifier.
func NewModelClassifier(modelService *ModelService, policy *config.AssistantConfig) *ModelClassifier {
	return &ModelClassifier{
		modelService: modelService,
		policy:       policy,
		logger:       utils.GetLogger(),
	}
}

// Classify implements Classifier. It never returns an error; classifier
// failures become {OUT_OF_SCOPE, 0} so the gate produces a deterministic
// refusal instead of a hard failure.
func (c *ModelClassifier) Classify(ctx context.Context, history []db.Message, newMessage string, pageContext *db.PageContext) models.Classification {
	fallback := models.Classification{Intent: models.IntentOutOfScope, Confidence: 0}

	chatModel, err := c.modelService.ClassifierModel(ctx)
	if err != nil {
		c.logger.Warn("Classifier model unavailable, treating turn as out of scope", "error", err)
		return fallback
	}

	prompt := c.buildPrompt(history, newMessage, pageContext)
	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		c.logger.Warn("Classification call failed, treating turn as out of scope", "error", err)
		return fallback
	}

	verdict, err := parseClassification(resp.Content)
	if err != nil {
		c.logger.Warn("Failed to parse classification verdict", "error", err, "content", resp.Content)
		return fallback
	}
	return verdict
}

func (c *ModelClassifier) buildPrompt(history []db.Message, newMessage string, pageContext *db.PageContext) string {
	var sb strings.Builder
	sb.WriteString("Classify the intent of the user's latest message to a merchant dashboard assistant.\n\n")
	sb.WriteString("Intents:\n")
	sb.WriteString("- DASHBOARD_INSIGHT: questions about the user's revenue, transactions, customers, or other dashboard data\n")
	sb.WriteString("- PRODUCT_FAQ: questions about how the product works, fees, features\n")
	sb.WriteString("- ACCOUNT_HELP: questions about the user's own account, settlement, compliance\n")
	sb.WriteString("- ASSISTANT_CAPABILITIES: questions about what this assistant can do\n")
	sb.WriteString("- OUT_OF_SCOPE: nothing the assistant covers relates to the topic\n")
	sb.WriteString("- OUT_OF_PAGE_SCOPE: in scope generally, but unrelated to the pinned resource of this conversation\n\n")

	if pageContext != nil {
		sb.WriteString(fmt.Sprintf("This conversation is pinned to a %s (id %s). ",
			pageContext.ResourceType, pageContext.ResourceID))
		sb.WriteString("Questions unrelated to that resource are OUT_OF_PAGE_SCOPE.\n\n")
	} else {
		sb.WriteString("This is a general conversation; never use OUT_OF_PAGE_SCOPE.\n\n")
	}

	start := 0
	if len(history) > classifierHistoryWindow {
		start = len(history) - classifierHistoryWindow
	}
	if start < len(history) {
		sb.WriteString("Recent conversation:\n")
		for _, msg := range history[start:] {
			if text := msg.GetTextContent(); text != "" {
				sb.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, text))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Latest user message:\n")
	sb.WriteString(newMessage)
	sb.WriteString("\n\nRespond with JSON only: {\"intent\": \"...\", \"confidence\": 0.0}")
	return sb.String()
}

// parseClassification extracts the JSON verdict from a model response that
// may wrap it in prose or code fences.
func parseClassification(content string) (models.Classification, error) {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "{"); idx >= 0 {
		content = content[idx:]
	}
	if idx := strings.LastIndex(content, "}"); idx >= 0 {
		content = content[:idx+1]
	}

	var raw struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return models.Classification{}, err
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return models.Classification{
		Intent:     models.ParseIntent(strings.ToUpper(strings.TrimSpace(raw.Intent))),
		Confidence: confidence,
	}, nil
}
