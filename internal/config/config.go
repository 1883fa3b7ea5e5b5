// Package config loads configuration from environment variables and the
// optional TOML tuning file.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime settings.
type Config struct {
	DatabaseURL      string
	OpenAIAPIKey     string
	XAIAPIKey        string
	OpenRouterAPIKey string
	GoogleAPIKey     string

	OpenAIModel     string
	GrokModel       string
	OpenRouterModel string
	GeminiModel     string

	EnabledSources []string
	PriorityOrder  []string
	LengthMode     string

	SourceTimeoutSec int
	MaxInFlight      int
	HistoryLimit     int

	TuningFile string
}

// Load reads env vars and applies defaults. Nothing is required: without
// API keys the engine runs on the local source, without DATABASE_URL the
// relationship store is in-memory.
func Load() Config {
	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		XAIAPIKey:        os.Getenv("XAI_API_KEY"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		GrokModel:        os.Getenv("GROK_MODEL"),
		OpenRouterModel:  os.Getenv("OPENROUTER_MODEL"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		LengthMode:       os.Getenv("LENGTH_MODE"),
		TuningFile:       os.Getenv("TUNING_FILE"),
	}

	cfg.EnabledSources = getEnvList("ENABLED_SOURCES")
	cfg.PriorityOrder = getEnvList("PRIORITY_ORDER")
	cfg.SourceTimeoutSec = getEnvInt("SOURCE_TIMEOUT_SEC", 30)
	cfg.MaxInFlight = getEnvInt("MAX_IN_FLIGHT", 4)
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 10)

	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.GrokModel == "" {
		cfg.GrokModel = "grok-4-fast"
	}
	if cfg.OpenRouterModel == "" {
		cfg.OpenRouterModel = "deepseek/deepseek-chat"
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.LengthMode == "" {
		cfg.LengthMode = "auto"
	}

	return cfg
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
