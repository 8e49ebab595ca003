package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/gritsenko31/ai-chat-bot/internal/bot"
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
		logger.Error("webhook server stopped with error", "error", err)
		os.Exit(1)
	}
}

// newHandler wires the relay behind the webhook endpoint.
func newHandler(cfg config.BotConfig, journal *db.Journal, logger *slog.Logger) (http.Handler, error) {
	sender, err := bot.NewCommander(cfg)
	if err != nil {
		return nil, fmt.Errorf("init commander: %w", err)
	}
	completer, err := bot.NewCompleter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init model provider: %w", err)
	}
	store := session.NewStore()
	b := bot.New(store, completer, sender, bot.OptionsFromConfig(cfg), journal, logger)

	status := func() telegram.Status {
		return telegram.Status{
			Provider: cfg.ModelProvider,
			Model:    cfg.ModelName(),
			Sessions: store.Len(),
		}
	}
	hook, err := telegram.NewWebhookHandler(b, status, cfg.WebhookSecret, logger)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.WebhookPath, hook)
	return mux, nil
}

func run(ctx context.Context, cfg config.BotConfig, logger *slog.Logger) error {
	var journal *db.Journal
	if cfg.JournalDBPath != "" {
		j, err := db.OpenJournal(cfg.JournalDBPath, "webhook", logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		journal = j
	}
	defer journal.Close()

	handler, err := newHandler(cfg, journal, logger)
	if err != nil {
		return err
	}

	if cfg.WebhookURL != "" && cfg.Commander == "telegram" {
		target := strings.TrimRight(cfg.WebhookURL, "/") + cfg.WebhookPath
		if err := bot.NewTelegramClient(cfg).SetWebhook(ctx, target, cfg.WebhookSecret, cfg.DropPending); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
		logger.Info("webhook registered", "path", cfg.WebhookPath)
		journal.Record(nil, db.EventWebhookSet, map[string]any{"path": cfg.WebhookPath})
	}

	srv := &http.Server{
		Addr:              cfg.WebhookAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("webhook server starting",
			"addr", cfg.WebhookAddr,
			"path", cfg.WebhookPath,
			"provider", cfg.ModelProvider,
			"model", cfg.ModelName(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
