package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
)

const backendName = "openai"

// Client is a stateless chat completions backend. Every call carries the
// full window-limited conversation. It talks to any OpenAI-compatible
// endpoint (OpenAI, Groq, ...) selected by the base URL.
type Client struct {
	client       *goopenai.Client
	model        string
	systemPrompt string
	sampling     model.Sampling
}

// NewClient creates an OpenAI-compatible client. An empty baseURL uses the
// SDK default.
func NewClient(apiKey, baseURL, modelName, systemPrompt string, sampling model.Sampling) *Client {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client:       goopenai.NewClientWithConfig(config),
		model:        modelName,
		systemPrompt: systemPrompt,
		sampling:     sampling,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the conversation and returns the first choice.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if c.systemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	for _, turn := range req.Turns {
		role := goopenai.ChatMessageRoleUser
		if turn.Role == history.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.sampling.MaxTokens > 0 {
		chatReq.MaxTokens = c.sampling.MaxTokens
	}
	if c.sampling.Temperature != nil {
		temperature := *c.sampling.Temperature
		chatReq.Temperature = &temperature
	}
	if c.sampling.TopP != nil {
		chatReq.TopP = *c.sampling.TopP
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return model.Response{}, classify(err)
	}

	result := model.Response{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		result.Content = model.EmptyResponse
		return result, nil
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return model.Response{}, &model.UpstreamError{
			Kind:    model.KindContentFiltered,
			Backend: backendName,
			Err:     fmt.Errorf("completion stopped with finish_reason=%s", choice.FinishReason),
		}
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		content = model.EmptyResponse
	}
	result.Content = content
	return result, nil
}

// classify maps SDK errors onto upstream error kinds. Error codes are more
// specific than status codes, so they are consulted first.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch code := fmt.Sprint(apiErr.Code); code {
		case "context_length_exceeded", "string_above_max_length":
			return &model.UpstreamError{Kind: model.KindContextTooLong, Backend: backendName, Status: apiErr.HTTPStatusCode, Err: err}
		case "model_not_found":
			return &model.UpstreamError{Kind: model.KindNotFound, Backend: backendName, Status: apiErr.HTTPStatusCode, Err: err}
		case "content_filter", "content_policy_violation":
			return &model.UpstreamError{Kind: model.KindContentFiltered, Backend: backendName, Status: apiErr.HTTPStatusCode, Err: err}
		case "rate_limit_exceeded":
			return &model.UpstreamError{Kind: model.KindRateLimited, Backend: backendName, Status: apiErr.HTTPStatusCode, Err: err}
		}
		return model.Classify(backendName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return model.Classify(backendName, reqErr.HTTPStatusCode, err)
	}
	return model.Classify(backendName, 0, err)
}
