package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile_ReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMMAND_CENTRE_CONFIG", "")

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path == "" {
		t.Fatalf("expected config path")
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
	if got := cfg.DatabasePath(); got != DefaultDatabasePath {
		t.Fatalf("cfg.DatabasePath() = %q, want %q", got, DefaultDatabasePath)
	}
}

func TestEnsureDefaultConfig_CreatesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("COMMAND_CENTRE_CONFIG", "")

	path, err := EnsureDefaultConfig()
	if err != nil {
		t.Fatalf("EnsureDefaultConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist at %s: %v", path, err)
	}

	cfg, gotPath, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if filepath.Clean(gotPath) != filepath.Clean(path) {
		t.Fatalf("Load() path = %s, want %s", gotPath, path)
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
}

func TestLoad_ConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  host: 0.0.0.0\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMMAND_CENTRE_CONFIG", configPath)

	cfg, gotPath, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gotPath != configPath {
		t.Fatalf("Load() path = %s, want %s", gotPath, configPath)
	}
	if got := cfg.Host(); got != "0.0.0.0" {
		t.Fatalf("cfg.Host() = %q, want %q", got, "0.0.0.0")
	}
	if got := cfg.Port(); got != 9090 {
		t.Fatalf("cfg.Port() = %d, want %d", got, 9090)
	}
}

func TestLoad_ParsesAssistantSection(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
assistant:
  message_limit: 5
  rate_limit_period_hours: 12
  low_confidence_threshold: 0.8
  max_summaries: 3
  context_window_size: 1000
  token_threshold_percentage: 0.5
  message_history_limit: 10
  conversation_ttl_hours: 48
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMMAND_CENTRE_CONFIG", configPath)

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	a := &cfg.Assistant
	if got := a.Limit(); got != 5 {
		t.Fatalf("Limit() = %d, want 5", got)
	}
	if got := a.PeriodHours(); got != 12 {
		t.Fatalf("PeriodHours() = %d, want 12", got)
	}
	if got := a.Threshold(); got != 0.8 {
		t.Fatalf("Threshold() = %v, want 0.8", got)
	}
	if got := a.Summaries(); got != 3 {
		t.Fatalf("Summaries() = %d, want 3", got)
	}
	if got := a.SummarizationThreshold(); got != 500 {
		t.Fatalf("SummarizationThreshold() = %d, want 500", got)
	}
	if got := a.HistoryLimit(); got != 10 {
		t.Fatalf("HistoryLimit() = %d, want 10", got)
	}
	if got := a.TTLHours(); got != 48 {
		t.Fatalf("TTLHours() = %d, want 48", got)
	}
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"threshold out of range", "assistant:\n  low_confidence_threshold: 1.5\n"},
		{"zero message limit", "assistant:\n  message_limit: 0\n"},
		{"zero max summaries", "assistant:\n  max_summaries: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			t.Setenv("COMMAND_CENTRE_CONFIG", configPath)

			if _, _, err := Load(); err == nil {
				t.Fatalf("Load() succeeded, want error")
			}
		})
	}
}

func TestAssistantConfig_Defaults(t *testing.T) {
	var a *AssistantConfig

	if got := a.Limit(); got != DefaultMessageLimit {
		t.Fatalf("Limit() = %d, want %d", got, DefaultMessageLimit)
	}
	if got := a.Threshold(); got != DefaultLowConfidenceThreshold {
		t.Fatalf("Threshold() = %v, want %v", got, DefaultLowConfidenceThreshold)
	}
	if got := a.Summaries(); got != DefaultMaxSummaries {
		t.Fatalf("Summaries() = %d, want %d", got, DefaultMaxSummaries)
	}
	want := int(float64(DefaultContextWindowSize) * DefaultTokenThresholdPercentage)
	if got := a.SummarizationThreshold(); got != want {
		t.Fatalf("SummarizationThreshold() = %d, want %d", got, want)
	}
	if got := a.OutOfScopeMessage(); got != DefaultOutOfScopeRefusal {
		t.Fatalf("OutOfScopeMessage() = %q", got)
	}
	if got := a.ClosedMessage(); got != DefaultClosedConversationMessage {
		t.Fatalf("ClosedMessage() = %q", got)
	}
}

func TestOutOfPageScopeMessage_SubstitutesResourceType(t *testing.T) {
	var a *AssistantConfig

	got := a.OutOfPageScopeMessage("transaction")
	if strings.Contains(got, ResourceTypePlaceholder) {
		t.Fatalf("placeholder not substituted: %q", got)
	}
	if !strings.Contains(got, "transaction") {
		t.Fatalf("resource type missing from refusal: %q", got)
	}

	custom := "ask about your " + ResourceTypePlaceholder + " here"
	a = &AssistantConfig{OutOfPageScopeRefusal: &custom}
	if got := a.OutOfPageScopeMessage("payout"); got != "ask about your payout here" {
		t.Fatalf("OutOfPageScopeMessage() = %q", got)
	}
}

func TestModelConfig_ApiKeyExpansion(t *testing.T) {
	t.Setenv("TEST_MODEL_KEY", "sk-12345")
	key := "${TEST_MODEL_KEY}"
	m := &ModelConfig{ApiKey: &key}

	if got := m.GetApiKey(); got != "sk-12345" {
		t.Fatalf("GetApiKey() = %q, want expanded env value", got)
	}
}

func TestModelConfig_ClassifierFallsBackToChatModel(t *testing.T) {
	chat := "gpt-4o-mini"
	m := &ModelConfig{ChatModel: &chat}

	if got := m.GetClassifierModel(); got != chat {
		t.Fatalf("GetClassifierModel() = %q, want %q", got, chat)
	}
	if got := m.GetSummarizerModel(); got != chat {
		t.Fatalf("GetSummarizerModel() = %q, want %q", got, chat)
	}
}
