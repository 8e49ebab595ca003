// Package bot is the relay between chat updates and the completion backend.
// Both transports (long-poll and webhook) feed updates into Bot.HandleUpdate.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gritsenko31/ai-chat-bot/internal/chunk"
	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/config"
	"github.com/gritsenko31/ai-chat-bot/internal/db"
	"github.com/gritsenko31/ai-chat-bot/internal/history"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
	"github.com/gritsenko31/ai-chat-bot/internal/session"
)

// Sender is the outbound half of a chat transport.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Options tune the relay.
type Options struct {
	Window          history.Window
	ChunkSize       int
	ChunkDelay      time.Duration
	UpstreamTimeout time.Duration
	Messages        config.Messages
}

// Bot relays text messages to a Completer and answers commands.
type Bot struct {
	store     *session.Store
	completer model.Completer
	sender    Sender
	opts      Options
	journal   *db.Journal
	logger    *slog.Logger
}

// New creates a Bot. journal may be nil.
func New(store *session.Store, completer model.Completer, sender Sender, opts Options, journal *db.Journal, logger *slog.Logger) *Bot {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultMaxLength
	}
	if opts.Messages == (config.Messages{}) {
		opts.Messages = config.DefaultMessages("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		store:     store,
		completer: completer,
		sender:    sender,
		opts:      opts,
		journal:   journal,
		logger:    logger.With("component", "bot"),
	}
}

// Store returns the session store the bot writes to.
func (b *Bot) Store() *session.Store {
	return b.store
}

// HandleUpdate processes one update. Updates without text are ignored. The
// returned error reports delivery failures only; upstream failures are
// answered with an error reply and are not returned.
func (b *Bot) HandleUpdate(ctx context.Context, update cmdpkg.Update) error {
	msg := update.Message
	if msg == nil || msg.Text == nil {
		return nil
	}
	text := *msg.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if name, ok := ParseCommand(text); ok {
		return b.handleCommand(ctx, msg, name)
	}
	return b.relay(ctx, msg, text)
}

func (b *Bot) relay(ctx context.Context, msg *cmdpkg.Message, text string) error {
	userID := msg.SenderID()
	chatID := msg.Chat.ID
	requestID := uuid.NewString()
	logger := b.logger.With("request_id", requestID, "user_id", userID)

	if err := b.sender.SendChatAction(ctx, chatID, cmdpkg.ActionTyping); err != nil {
		logger.Warn("typing indicator failed", "error", err)
	}

	sess := b.store.GetOrCreate(userID)
	sess.Lock()
	defer sess.Unlock()

	turns := b.opts.Window.Request(sess.Snapshot(), history.UserTurn(text))
	exchangeID := b.journal.Record(nil, db.EventExchangeStarted, map[string]any{
		"request_id": requestID,
		"user_id":    userID,
		"session_id": sess.ID,
		"turns":      len(turns),
	})
	parent := &exchangeID
	if exchangeID == 0 {
		parent = nil
	}

	started := time.Now()
	resp, err := b.complete(ctx, model.Request{SessionID: sess.ID, Turns: turns})
	if err != nil {
		kind := model.KindOf(err)
		logger.Error("completion failed", "kind", kind, "error", err, "elapsed", time.Since(started))
		b.journal.Record(parent, db.EventExchangeFailed, map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return b.deliver(ctx, chatID, ErrorReply(b.opts.Messages, err), parent)
	}

	content := resp.Content
	if strings.TrimSpace(content) == "" {
		content = model.EmptyResponse
	}
	// Committed before delivery: a failed send does not undo the exchange.
	sess.Commit(b.opts.Window, history.UserTurn(text), history.AssistantTurn(content))
	b.releaseIfCleared(userID, sess)

	logger.Info("completion done",
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"elapsed", time.Since(started),
	)
	b.journal.Record(parent, db.EventExchangeCompleted, map[string]any{
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"elapsed_ms":    time.Since(started).Milliseconds(),
	})
	return b.deliver(ctx, chatID, content, parent)
}

func (b *Bot) complete(ctx context.Context, req model.Request) (model.Response, error) {
	if b.opts.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.UpstreamTimeout)
		defer cancel()
	}
	return b.completer.Complete(ctx, req)
}

// releaseIfCleared drops backend state created for a session that was
// cleared while its exchange was in flight.
func (b *Bot) releaseIfCleared(userID int64, sess *session.Session) {
	if cur, ok := b.store.Get(userID); ok && cur == sess {
		return
	}
	if r, ok := b.completer.(model.Releaser); ok {
		r.Release(sess.ID)
	}
}

// deliver splits text and sends the chunks in order, pausing between them.
// The first failed send aborts the rest.
func (b *Bot) deliver(ctx context.Context, chatID int64, text string, parent *int64) error {
	chunks := chunk.Split(text, b.opts.ChunkSize)
	for i, c := range chunks {
		if i > 0 && b.opts.ChunkDelay > 0 {
			if err := sleepContext(ctx, b.opts.ChunkDelay); err != nil {
				return err
			}
		}
		if err := b.sender.SendMessage(ctx, chatID, c); err != nil {
			b.journal.Record(parent, db.EventReplyFailed, map[string]any{
				"chunk": i + 1,
				"of":    len(chunks),
				"error": err.Error(),
			})
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		b.journal.Record(parent, db.EventReplySent, map[string]any{
			"chunk": i + 1,
			"of":    len(chunks),
			"chars": chunk.Length(c),
		})
	}
	return nil
}

// ErrorReply maps a completion failure to the text shown to the user.
func ErrorReply(m config.Messages, err error) string {
	switch model.KindOf(err) {
	case model.KindRateLimited:
		return m.RateLimited
	case model.KindContextTooLong:
		return m.ContextTooLong
	case model.KindContentFiltered:
		return m.ContentFiltered
	case model.KindNotFound:
		return m.NotFound
	}
	var upstream *model.UpstreamError
	if errors.As(err, &upstream) {
		return m.ErrorPrefix + upstream.Message()
	}
	return m.ErrorPrefix + err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
