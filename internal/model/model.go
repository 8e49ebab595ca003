// Package model defines the completion backend contract and its error kinds.
package model

import (
	"context"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
)

// Request is one completion call for a session.
type Request struct {
	// SessionID identifies the session generation; it changes after a clear.
	SessionID string
	// Turns is the window-limited conversation ending with the new user turn.
	Turns []history.Turn
}

// LastUserMessage returns the content of the final turn when it is a user turn.
func (r Request) LastUserMessage() (string, bool) {
	if len(r.Turns) == 0 {
		return "", false
	}
	last := r.Turns[len(r.Turns)-1]
	if last.Role != history.RoleUser {
		return "", false
	}
	return last.Content, true
}

// Response is the common response model for all backends.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Completer is the completion backend abstraction used by the bot.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Releaser is implemented by backends that keep per-session state upstream.
type Releaser interface {
	Release(sessionID string)
}

// Sampling holds generation parameters shared by the backends.
// A nil Temperature or TopP leaves the provider default in place; zero is sent as is.
type Sampling struct {
	Temperature *float32
	TopP        *float32
	TopK        int
	MaxTokens   int
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }

// EmptyResponse replaces blank completions so a reply is always sent.
const EmptyResponse = "(empty model response)"
