package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gritsenko31/ai-chat-bot/internal/bot"
	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/config"
	"github.com/gritsenko31/ai-chat-bot/internal/db"
	"github.com/gritsenko31/ai-chat-bot/internal/session"
	"github.com/gritsenko31/ai-chat-bot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBotConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := bot.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

type app struct {
	bot     *bot.Bot
	source  cmdpkg.Commander
	journal *db.Journal
}

func setup(cfg config.BotConfig, logger *slog.Logger) (*app, error) {
	var journal *db.Journal
	if cfg.JournalDBPath != "" {
		j, err := db.OpenJournal(cfg.JournalDBPath, "bot", logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		journal = j
	}
	source, err := bot.NewCommander(cfg)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("init commander: %w", err)
	}
	completer, err := bot.NewCompleter(cfg, logger)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("init model provider: %w", err)
	}
	b := bot.New(session.NewStore(), completer, source, bot.OptionsFromConfig(cfg), journal, logger)
	return &app{bot: b, source: source, journal: journal}, nil
}

func run(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) error {
	a, err := setup(cfg, logger)
	if err != nil {
		return err
	}
	defer a.journal.Close()

	// getUpdates is refused while a webhook is registered.
	if client, ok := a.source.(*telegram.Client); ok {
		if err := client.DeleteWebhook(ctx, false); err != nil {
			logger.Warn("deleteWebhook failed", "error", err)
		}
	}

	logger.Info("bot running",
		"provider", cfg.ModelProvider,
		"model", cfg.ModelName(),
		"source", cfg.Commander,
		"history_window", cfg.HistoryWindow,
	)

	poller := telegram.NewPoller(a.source, a.bot, telegram.PollerConfig{
		Timeout:     cfg.Timeout,
		Sleep:       cfg.Sleep,
		DropPending: cfg.DropPending,
		Concurrency: cfg.PollConcurrency,
	}, a.journal, logger)
	return poller.Run(ctx)
}
