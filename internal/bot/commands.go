package bot

import (
	"context"
	"strings"

	cmdpkg "github.com/gritsenko31/ai-chat-bot/internal/commander"
	"github.com/gritsenko31/ai-chat-bot/internal/db"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
)

// ParseCommand reports whether text is a command and returns its lower-case
// name without the leading slash, the @botname suffix and any arguments.
func ParseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := text[1:]
	if i := strings.IndexAny(name, " \t\r\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), true
}

func (b *Bot) handleCommand(ctx context.Context, msg *cmdpkg.Message, name string) error {
	userID := msg.SenderID()
	var reply string
	switch name {
	case "start":
		reply = b.opts.Messages.Welcome
	case "help":
		reply = b.opts.Messages.Help
	case "clear":
		b.clear(userID)
		reply = b.opts.Messages.Cleared
	default:
		b.logger.Debug("ignoring unknown command", "command", name, "user_id", userID)
		return nil
	}
	b.journal.Record(nil, db.EventCommandHandled, map[string]any{"command": name, "user_id": userID})
	return b.deliver(ctx, msg.Chat.ID, reply, nil)
}

// clear forgets the user's session. Clearing a user without a session is a no-op.
func (b *Bot) clear(userID int64) {
	id, existed := b.store.Clear(userID)
	if !existed {
		return
	}
	if r, ok := b.completer.(model.Releaser); ok {
		r.Release(id)
	}
	b.logger.Info("session cleared", "user_id", userID, "session_id", id)
	b.journal.Record(nil, db.EventSessionCleared, map[string]any{"user_id": userID, "session_id": id})
}
