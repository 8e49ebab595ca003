package bot

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gritsenko31/ai-chat-bot/internal/anthropic"
	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/config"
	"github.com/gritsenko31/ai-chat-bot/internal/dummy"
	"github.com/gritsenko31/ai-chat-bot/internal/history"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
	"github.com/gritsenko31/ai-chat-bot/internal/openai"
	"github.com/gritsenko31/ai-chat-bot/internal/telegram"
)

// NewCompleter builds the completion backend selected by cfg.ModelProvider.
func NewCompleter(cfg config.BotConfig, logger *slog.Logger) (model.Completer, error) {
	sampling := model.Sampling{
		Temperature: model.Float32(cfg.Temperature),
		TopP:        model.Float32(cfg.TopP),
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
	}
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.SystemPrompt, sampling), nil
	case "anthropic":
		window := history.Window{MaxTurns: cfg.HistoryWindow}
		return anthropic.NewChatClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel, cfg.SystemPrompt, sampling, window, logger), nil
	case "dummy":
		return dummy.NewProvider(cfg.ModelName(), cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

// NewCommander builds the chat transport selected by cfg.Commander.
func NewCommander(cfg config.BotConfig) (cmdpkg.Commander, error) {
	switch cfg.Commander {
	case "telegram":
		return NewTelegramClient(cfg), nil
	case "dummy":
		return dummy.NewCommander(cfg.DummyCommanderScript, cfg.DummySendScript)
	default:
		return nil, fmt.Errorf("unsupported commander: %s", cfg.Commander)
	}
}

// NewTelegramClient returns the Bot API client for cfg. Its request timeout
// leaves room for the long-poll timeout.
func NewTelegramClient(cfg config.BotConfig) *telegram.Client {
	return telegram.NewClient(
		telegram.BotAPIBase(cfg.TelegramAPIHost, cfg.TelegramToken),
		time.Duration(cfg.Timeout+20)*time.Second,
	)
}

// OptionsFromConfig derives relay options from cfg.
func OptionsFromConfig(cfg config.BotConfig) Options {
	return Options{
		Window:          history.Window{MaxTurns: cfg.HistoryWindow},
		ChunkSize:       cfg.ChunkSize,
		ChunkDelay:      cfg.ChunkDelay,
		UpstreamTimeout: cfg.UpstreamTimeout,
		Messages:        cfg.Messages,
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT values.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
