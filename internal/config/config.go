// Package config loads bot settings from the environment and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "llama-3.3-70b-versatile"
	DefaultOpenAIBaseURL  = "https://api.groq.com/openai/v1"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// BotConfig holds configuration for the bot binaries.
type BotConfig struct {
	TelegramToken   string
	TelegramAPIHost string
	Commander       string

	ModelProvider    string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	SystemPrompt     string
	Temperature      float32
	TopP             float32
	TopK             int
	MaxTokens        int

	ChunkSize       int
	ChunkDelay      time.Duration
	HistoryWindow   int
	UpstreamTimeout time.Duration

	Timeout         int
	Sleep           time.Duration
	DropPending     bool
	PollConcurrency int

	WebhookAddr   string
	WebhookPath   string
	WebhookURL    string
	WebhookSecret string

	JournalDBPath        string
	DummyProviderScript  string
	DummyCommanderScript string
	DummySendScript      string

	LogLevel  string
	LogFormat string

	Messages Messages
}

// ModelName returns the model used by the selected provider.
func (c BotConfig) ModelName() string {
	switch c.ModelProvider {
	case "anthropic":
		return c.AnthropicModel
	case "dummy":
		return "dummy"
	default:
		return c.OpenAIModel
	}
}

// fileConfig is the optional YAML overlay named by BOT_CONFIG_FILE.
type fileConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	Sampling     struct {
		Temperature *float64 `yaml:"temperature"`
		TopP        *float64 `yaml:"top_p"`
		TopK        *int     `yaml:"top_k"`
		MaxTokens   *int     `yaml:"max_tokens"`
	} `yaml:"sampling"`
	HistoryWindow *int     `yaml:"history_window"`
	ChunkSize     *int     `yaml:"chunk_size"`
	Messages      Messages `yaml:"messages"`
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("BOT_CONFIG_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("BOT_CONFIG_FILE %s: %w", path, err)
	}
	return fc, nil
}

// LoadBotConfig reads configuration from the optional YAML file and the
// environment. Environment variables win over the file, which wins over
// built-in defaults.
func LoadBotConfig() (BotConfig, error) {
	fc, err := loadFile(os.Getenv("BOT_CONFIG_FILE"))
	if err != nil {
		return BotConfig{}, err
	}

	modelProvider := strings.ToLower(envOrDefault("MODEL_PROVIDER", orString(fc.Provider, "openai")))
	commander := envOrDefault("BOT_COMMANDER", "telegram")

	telegramToken := firstEnv("TELEGRAM_BOT_TOKEN", "BOT_TOKEN")
	if commander == "telegram" && telegramToken == "" {
		return BotConfig{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required in environment when BOT_COMMANDER=telegram")
	}
	if commander != "telegram" && commander != "dummy" {
		return BotConfig{}, fmt.Errorf("BOT_COMMANDER must be telegram or dummy, got %q", commander)
	}

	cfg := BotConfig{
		TelegramToken:   telegramToken,
		TelegramAPIHost: envOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		Commander:       commander,

		ModelProvider:    modelProvider,
		OpenAIAPIKey:     firstEnv("OPENAI_API_KEY", "GROQ_API_KEY"),
		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:      envOrDefault("OPENAI_MODEL", modelFor(fc, "openai", DefaultOpenAIModel)),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		AnthropicModel:   envOrDefault("ANTHROPIC_MODEL", modelFor(fc, "anthropic", DefaultAnthropicModel)),
		SystemPrompt:     envOrDefault("SYSTEM_PROMPT", fc.SystemPrompt),
		Temperature:      float32(envFloatOrDefault("MODEL_TEMPERATURE", orFloat(fc.Sampling.Temperature, 0.7))),
		TopP:             float32(envFloatOrDefault("MODEL_TOP_P", orFloat(fc.Sampling.TopP, 0.9))),
		TopK:             envIntOrDefault("MODEL_TOP_K", orInt(fc.Sampling.TopK, 40)),
		MaxTokens:        envIntOrDefault("MODEL_MAX_TOKENS", orInt(fc.Sampling.MaxTokens, 2048)),

		ChunkSize:       envIntOrDefault("CHUNK_SIZE", orInt(fc.ChunkSize, 4000)),
		ChunkDelay:      envMillisOrDefault("CHUNK_DELAY_MS", 500*time.Millisecond),
		HistoryWindow:   envIntOrDefault("HISTORY_WINDOW", orInt(fc.HistoryWindow, 20)),
		UpstreamTimeout: envSecondsOrDefault("UPSTREAM_TIMEOUT_SECONDS", 120*time.Second),

		Timeout:         envIntOrDefault("TG_TIMEOUT", 30),
		Sleep:           envSecondsOrDefault("TG_SLEEP_SECONDS", time.Second),
		DropPending:     envBoolOrDefault("TG_DROP_PENDING", true),
		PollConcurrency: envIntOrDefault("POLL_CONCURRENCY", 8),

		WebhookAddr:   envOrDefault("WEBHOOK_ADDR", ":8080"),
		WebhookPath:   envOrDefault("WEBHOOK_PATH", "/api/webhook"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		JournalDBPath:        os.Getenv("JOURNAL_DB_PATH"),
		DummyProviderScript:  envOrDefault("DUMMY_PROVIDER_SCRIPT", "ok"),
		DummyCommanderScript: envOrDefault("DUMMY_COMMANDER_SCRIPT", "ok"),
		DummySendScript:      envOrDefault("DUMMY_COMMANDER_SEND_SCRIPT", "ok"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),
	}
	cfg.Messages = DefaultMessages(ModelLabel(cfg.ModelName())).Merge(fc.Messages)

	if err := cfg.validate(); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

func (c BotConfig) validate() error {
	switch c.ModelProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY (or GROQ_API_KEY) is required in environment when MODEL_PROVIDER=openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required in environment when MODEL_PROVIDER=anthropic")
		}
	case "dummy":
	default:
		return fmt.Errorf("MODEL_PROVIDER must be openai, anthropic or dummy, got %q", c.ModelProvider)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 4096 {
		return fmt.Errorf("CHUNK_SIZE must be between 1 and 4096, got %d", c.ChunkSize)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be > 0, got %d", c.HistoryWindow)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("CHUNK_DELAY_MS must be >= 0")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be > 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("MODEL_TEMPERATURE must be between 0 and 2, got %v", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("MODEL_TOP_P must be between 0 and 1, got %v", c.TopP)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be > 0, got %d", c.MaxTokens)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("TG_TIMEOUT must be >= 0, got %d", c.Timeout)
	}
	if c.PollConcurrency <= 0 {
		return fmt.Errorf("POLL_CONCURRENCY must be > 0, got %d", c.PollConcurrency)
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		return fmt.Errorf("WEBHOOK_PATH must start with /, got %q", c.WebhookPath)
	}
	return nil
}

func modelFor(fc fileConfig, provider, fallback string) string {
	if fc.Model != "" && (fc.Provider == "" || strings.EqualFold(fc.Provider, provider)) {
		return fc.Model
	}
	return fallback
}

func orString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func orFloat(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func envSecondsOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func envMillisOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
