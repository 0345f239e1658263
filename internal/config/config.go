package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	// LLMRateLimit is requests per second across all model calls; 0 disables it.
	LLMRateLimit float64

	TaxonomyPath         string
	WorkspaceID          string
	InboxURL             string
	BaselineLanguage     string
	TranslateConcurrency int

	SlackBotToken string
	SlackChannel  string

	APIToken string
}

func Load() Config {
	return Config{
		Port:        envInt("SIFT_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		LLMProvider:     envStr("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("SIFT_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		LLMRateLimit:    envFloat("LLM_RATE_LIMIT", 2),

		TaxonomyPath:         envStr("TAXONOMY_PATH", ""),
		WorkspaceID:          envStr("WORKSPACE_ID", ""),
		InboxURL:             envStr("INBOX_URL", "https://app.intercom.com/a/inbox"),
		BaselineLanguage:     envStr("BASELINE_LANGUAGE", "en"),
		TranslateConcurrency: envInt("TRANSLATE_CONCURRENCY", 1),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REPORT_CHANNEL", ""),

		APIToken: envStr("SIFT_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
