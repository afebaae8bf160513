package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied through the accessor methods,
// so a missing file yields a fully usable configuration.
//
// Example (~/.command-centre/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// database:
//   path: command-centre.db
// model:
//   provider: openai
//   api_key: ${OPENAI_API_KEY}
//   chat_model: gpt-4o
// assistant:
//   message_limit: 100
//   max_summaries: 2
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - The assistant section is the policy table: it is loaded once at startup
//   and passed by reference into each component; it is never mutated after.

type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Model     ModelConfig     `yaml:"model"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

// ModelConfig selects the model provider used for generation, classification,
// and summarization. ApiKey supports ${ENV_VAR} expansion.
type ModelConfig struct {
	Provider        *string `yaml:"provider"` // openai, anthropic, google
	ApiKey          *string `yaml:"api_key"`
	BaseURL         *string `yaml:"base_url"`
	ChatModel       *string `yaml:"chat_model"`
	ClassifierModel *string `yaml:"classifier_model"`
	SummarizerModel *string `yaml:"summarizer_model"`
}

// AssistantConfig is the scope-policy and budget table for the assistant.
type AssistantConfig struct {
	MessageLimit             *int     `yaml:"message_limit"`
	RateLimitPeriodHours     *int     `yaml:"rate_limit_period_hours"`
	LowConfidenceThreshold   *float64 `yaml:"low_confidence_threshold"`
	MaxSummaries             *int     `yaml:"max_summaries"`
	ContextWindowSize        *int     `yaml:"context_window_size"`
	TokenThresholdPercentage *float64 `yaml:"token_threshold_percentage"`
	MessageHistoryLimit      *int     `yaml:"message_history_limit"`
	ConversationTTLHours     *int     `yaml:"conversation_ttl_hours"`

	AllowedIntents []string `yaml:"allowed_intents"`

	OutOfScopeRefusal     *string `yaml:"out_of_scope_refusal"`
	OutOfPageScopeRefusal *string `yaml:"out_of_page_scope_refusal"`
	ClosedConversation    *string `yaml:"closed_conversation_message"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8090

	DefaultDatabasePath = "command-centre.db"

	DefaultMessageLimit             = 100
	DefaultRateLimitPeriodHours     = 24
	DefaultLowConfidenceThreshold   = 0.6
	DefaultMaxSummaries             = 2
	DefaultContextWindowSize        = 128000
	DefaultTokenThresholdPercentage = 0.6
	DefaultMessageHistoryLimit      = 40
	DefaultConversationTTLHours     = 24 * 30

	// ResourceTypePlaceholder is substituted into the out-of-page refusal.
	ResourceTypePlaceholder = "{{RESOURCE_TYPE}}"
)

const (
	DefaultOutOfScopeRefusal = "I can only help with questions about your dashboard, " +
		"payments, and account. That topic is outside what I can assist with."

	DefaultOutOfPageScopeRefusal = "I can help with that in a general conversation, but " +
		"this conversation is pinned to a " + ResourceTypePlaceholder + ". Start a new " +
		"conversation to ask about something else."

	DefaultClosedConversationMessage = "This conversation has reached its length limit and " +
		"is now closed. Start a new conversation, or continue from this one to carry its " +
		"summary forward."
)

// DefaultAllowedIntents is the in-scope intent set.
var DefaultAllowedIntents = []string{
	"DASHBOARD_INSIGHT",
	"PRODUCT_FAQ",
	"ACCOUNT_HELP",
	"ASSISTANT_CAPABILITIES",
}

// DefaultPaths returns the config dir and config file path.
// COMMAND_CENTRE_CONFIG overrides the file location.
func DefaultPaths() (configDir string, configFile string, err error) {
	if v := strings.TrimSpace(os.Getenv("COMMAND_CENTRE_CONFIG")); v != "" {
		return filepath.Dir(v), v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".command-centre")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads the config file.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return cfg, configFile, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Host()) == "" {
		return errors.New("server.host is empty")
	}
	if p := c.Port(); p < 1 || p > 65535 {
		return fmt.Errorf("server.port %d out of range", p)
	}
	if v := c.Assistant.Threshold(); v <= 0 || v > 1 {
		return fmt.Errorf("assistant.low_confidence_threshold %v out of range (0,1]", v)
	}
	if v := c.Assistant.TokenThreshold(); v <= 0 || v > 1 {
		return fmt.Errorf("assistant.token_threshold_percentage %v out of range (0,1]", v)
	}
	if v := c.Assistant.Limit(); v < 1 {
		return fmt.Errorf("assistant.message_limit %d must be positive", v)
	}
	if v := c.Assistant.Summaries(); v < 1 {
		return fmt.Errorf("assistant.max_summaries %d must be positive", v)
	}
	if v := c.Assistant.HistoryLimit(); v < 1 {
		return fmt.Errorf("assistant.message_history_limit %d must be positive", v)
	}
	return nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server:   ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Database: DatabaseConfig{Path: ptr(DefaultDatabasePath)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	if v := strings.TrimSpace(*c.Server.Host); v != "" {
		return v
	}
	return DefaultHost
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) DatabasePath() string {
	if c == nil || c.Database.Path == nil {
		return DefaultDatabasePath
	}
	if v := strings.TrimSpace(*c.Database.Path); v != "" {
		return v
	}
	return DefaultDatabasePath
}

func (m *ModelConfig) GetProvider() string {
	if m == nil || m.Provider == nil {
		return "openai"
	}
	return strings.ToLower(strings.TrimSpace(*m.Provider))
}

func (m *ModelConfig) GetApiKey() string {
	if m == nil || m.ApiKey == nil {
		return ""
	}
	return os.ExpandEnv(*m.ApiKey)
}

func (m *ModelConfig) GetBaseURL() string {
	if m == nil || m.BaseURL == nil {
		return ""
	}
	return *m.BaseURL
}

func (m *ModelConfig) GetChatModel() string {
	if m == nil || m.ChatModel == nil {
		return "gpt-4o"
	}
	return *m.ChatModel
}

// GetClassifierModel falls back to the chat model when unset.
func (m *ModelConfig) GetClassifierModel() string {
	if m == nil || m.ClassifierModel == nil {
		return m.GetChatModel()
	}
	return *m.ClassifierModel
}

// GetSummarizerModel falls back to the chat model when unset.
func (m *ModelConfig) GetSummarizerModel() string {
	if m == nil || m.SummarizerModel == nil {
		return m.GetChatModel()
	}
	return *m.SummarizerModel
}

func (a *AssistantConfig) Limit() int {
	if a == nil || a.MessageLimit == nil {
		return DefaultMessageLimit
	}
	return *a.MessageLimit
}

func (a *AssistantConfig) PeriodHours() int {
	if a == nil || a.RateLimitPeriodHours == nil {
		return DefaultRateLimitPeriodHours
	}
	return *a.RateLimitPeriodHours
}

func (a *AssistantConfig) Threshold() float64 {
	if a == nil || a.LowConfidenceThreshold == nil {
		return DefaultLowConfidenceThreshold
	}
	return *a.LowConfidenceThreshold
}

func (a *AssistantConfig) Summaries() int {
	if a == nil || a.MaxSummaries == nil {
		return DefaultMaxSummaries
	}
	return *a.MaxSummaries
}

func (a *AssistantConfig) ContextWindow() int {
	if a == nil || a.ContextWindowSize == nil {
		return DefaultContextWindowSize
	}
	return *a.ContextWindowSize
}

func (a *AssistantConfig) TokenThreshold() float64 {
	if a == nil || a.TokenThresholdPercentage == nil {
		return DefaultTokenThresholdPercentage
	}
	return *a.TokenThresholdPercentage
}

// SummarizationThreshold is the accumulated-token level that triggers a
// summarization pass.
func (a *AssistantConfig) SummarizationThreshold() int {
	return int(float64(a.ContextWindow()) * a.TokenThreshold())
}

func (a *AssistantConfig) HistoryLimit() int {
	if a == nil || a.MessageHistoryLimit == nil {
		return DefaultMessageHistoryLimit
	}
	return *a.MessageHistoryLimit
}

func (a *AssistantConfig) TTLHours() int {
	if a == nil || a.ConversationTTLHours == nil {
		return DefaultConversationTTLHours
	}
	return *a.ConversationTTLHours
}

func (a *AssistantConfig) Intents() []string {
	if a == nil || len(a.AllowedIntents) == 0 {
		return DefaultAllowedIntents
	}
	return a.AllowedIntents
}

// OutOfScopeMessage is the refusal emitted when a turn is out of scope.
func (a *AssistantConfig) OutOfScopeMessage() string {
	if a == nil || a.OutOfScopeRefusal == nil {
		return DefaultOutOfScopeRefusal
	}
	return *a.OutOfScopeRefusal
}

// OutOfPageScopeMessage renders the page-scope refusal for a resource type.
func (a *AssistantConfig) OutOfPageScopeMessage(resourceType string) string {
	tpl := DefaultOutOfPageScopeRefusal
	if a != nil && a.OutOfPageScopeRefusal != nil {
		tpl = *a.OutOfPageScopeRefusal
	}
	return strings.ReplaceAll(tpl, ResourceTypePlaceholder, resourceType)
}

// ClosedMessage is the fixed response for sends against a closed conversation.
func (a *AssistantConfig) ClosedMessage() string {
	if a == nil || a.ClosedConversation == nil {
		return DefaultClosedConversationMessage
	}
	return *a.ClosedConversation
}

func ptr[T any](v T) *T { return &v }
