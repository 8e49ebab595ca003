// Package anthropic implements the stateful completion backend: every
// session owns a chat object that keeps its own conversation and sampling
// configuration, and each call appends a single user message to it.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sdk "github.com/liushuangls/go-anthropic/v2"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
)

const backendName = "anthropic"

// Chat is one session's conversation with the provider.
type Chat struct {
	mu       sync.Mutex
	client   *sdk.Client
	model    string
	system   string
	sampling model.Sampling
	window   history.Window
	turns    []history.Turn
}

// Send appends message to the chat and returns the reply. The chat history
// is only extended when the call succeeds.
func (c *Chat) Send(ctx context.Context, message string) (model.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make([]history.Turn, 0, len(c.turns)+1)
	pending = append(pending, c.turns...)
	pending = c.window.Trim(append(pending, history.UserTurn(message)))
	// The Messages API requires the conversation to open with a user turn.
	sent := pending
	for len(sent) > 0 && sent[0].Role == history.RoleAssistant {
		sent = sent[1:]
	}
	messages := make([]sdk.Message, 0, len(sent))
	for _, turn := range sent {
		if turn.Role == history.RoleAssistant {
			messages = append(messages, sdk.NewAssistantTextMessage(turn.Content))
			continue
		}
		messages = append(messages, sdk.NewUserTextMessage(turn.Content))
	}

	maxTokens := c.sampling.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	req := sdk.MessagesRequest{
		Model:     sdk.Model(c.model),
		Messages:  messages,
		MaxTokens: maxTokens,
		System:    c.system,
	}
	if c.sampling.Temperature != nil {
		temperature := *c.sampling.Temperature
		req.Temperature = &temperature
	}
	if c.sampling.TopP != nil {
		topP := *c.sampling.TopP
		req.TopP = &topP
	}
	if c.sampling.TopK > 0 {
		topK := c.sampling.TopK
		req.TopK = &topK
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return model.Response{}, classify(err)
	}
	if string(resp.StopReason) == "refusal" {
		return model.Response{}, &model.UpstreamError{
			Kind:    model.KindContentFiltered,
			Backend: backendName,
			Err:     errors.New("message refused with stop_reason=refusal"),
		}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == sdk.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		content = model.EmptyResponse
	}

	c.turns = c.window.Trim(append(pending, history.AssistantTurn(content)))
	return model.Response{
		Content:      content,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Turns returns a copy of the chat's own history.
func (c *Chat) Turns() []history.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]history.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// ChatClient hands out one Chat per session ID.
type ChatClient struct {
	client   *sdk.Client
	model    string
	system   string
	sampling model.Sampling
	window   history.Window
	logger   *slog.Logger

	mu    sync.Mutex
	chats map[string]*Chat
}

// NewChatClient creates the stateful backend. An empty baseURL uses the SDK
// default endpoint.
func NewChatClient(apiKey, baseURL, modelName, systemPrompt string, sampling model.Sampling, window history.Window, logger *slog.Logger) *ChatClient {
	var opts []sdk.ClientOption
	if baseURL != "" {
		opts = append(opts, sdk.WithBaseURL(baseURL))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatClient{
		client:   sdk.NewClient(apiKey, opts...),
		model:    modelName,
		system:   systemPrompt,
		sampling: sampling,
		window:   window,
		logger:   logger.With("component", backendName),
		chats:    make(map[string]*Chat),
	}
}

// Model returns the configured model name.
func (c *ChatClient) Model() string {
	return c.model
}

// StartChat returns the chat for sessionID, creating it from seed when it
// does not exist yet.
func (c *ChatClient) StartChat(sessionID string, seed []history.Turn) *Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	if chat, ok := c.chats[sessionID]; ok {
		return chat
	}
	chat := &Chat{
		client:   c.client,
		model:    c.model,
		system:   c.system,
		sampling: c.sampling,
		window:   c.window,
		turns:    c.window.Trim(seed),
	}
	c.chats[sessionID] = chat
	c.logger.Debug("chat started", "session_id", sessionID, "seed_turns", len(seed))
	return chat
}

// Complete sends the request's final user turn to the session's chat.
func (c *ChatClient) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	message, ok := req.LastUserMessage()
	if !ok {
		return model.Response{}, fmt.Errorf("anthropic chat: request must end with a user turn")
	}
	chat := c.StartChat(req.SessionID, req.Turns[:len(req.Turns)-1])
	return chat.Send(ctx, message)
}

// Release forgets the chat of a cleared session.
func (c *ChatClient) Release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chats, sessionID)
}

// Len returns the number of live chats.
func (c *ChatClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chats)
}

func classify(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		switch string(apiErr.Type) {
		case "rate_limit_error":
			return &model.UpstreamError{Kind: model.KindRateLimited, Backend: backendName, Err: err}
		case "not_found_error":
			return &model.UpstreamError{Kind: model.KindNotFound, Backend: backendName, Err: err}
		case "request_too_large":
			return &model.UpstreamError{Kind: model.KindContextTooLong, Backend: backendName, Err: err}
		}
		return model.Classify(backendName, 0, err)
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return model.Classify(backendName, reqErr.StatusCode, err)
	}
	return model.Classify(backendName, 0, err)
}
