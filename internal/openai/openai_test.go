package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gritsenko31/ai-chat-bot/internal/history"
	"github.com/gritsenko31/ai-chat-bot/internal/model"
)

func testRequest() model.Request {
	return model.Request{
		SessionID: "s-1",
		Turns: []history.Turn{
			history.UserTurn("hi"),
			history.AssistantTurn("hello"),
			history.UserTurn("how are you?"),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestComplete_WithUsage(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": " Hello! "}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", "be brief", model.Sampling{Temperature: model.Float32(0.7), TopP: model.Float32(0.9), MaxTokens: 2048})
	result, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.InputTokens != 42 || result.OutputTokens != 7 {
		t.Errorf("unexpected usage: %+v", result)
	}

	if got["model"] != "test-model" {
		t.Errorf("unexpected model: %v", got["model"])
	}
	if got["max_tokens"] != float64(2048) {
		t.Errorf("unexpected max_tokens: %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected system + 3 turns, got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("unexpected system message: %v", first)
	}
	second, _ := msgs[2].(map[string]any)
	if second["role"] != "assistant" || second["content"] != "hello" {
		t.Errorf("unexpected assistant message: %v", second)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 0},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", "", model.Sampling{})
	result, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != model.EmptyResponse {
		t.Errorf("expected empty model response fallback, got %q", result.Content)
	}
}

func TestComplete_ContentFilterFinishReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": ""}, "finish_reason": "content_filter"},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", "", model.Sampling{})
	_, err := client.Complete(context.Background(), testRequest())
	if model.KindOf(err) != model.KindContentFiltered {
		t.Fatalf("expected content filtered, got %v", err)
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		want   model.Kind
	}{
		{"rate limit", http.StatusTooManyRequests, "rate_limit_exceeded", model.KindRateLimited},
		{"context length", http.StatusBadRequest, "context_length_exceeded", model.KindContextTooLong},
		{"model missing", http.StatusNotFound, "model_not_found", model.KindNotFound},
		{"server error", http.StatusInternalServerError, "server_error", model.KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, c.status, map[string]any{
					"error": map[string]any{"message": c.name, "type": "invalid_request_error", "code": c.code},
				})
			}))
			defer server.Close()

			client := NewClient("test-key", server.URL, "test-model", "", model.Sampling{})
			_, err := client.Complete(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := model.KindOf(err); got != c.want {
				t.Fatalf("expected %s, got %s (%v)", c.want, got, err)
			}
		})
	}
}

func TestComplete_SamplingTemperature(t *testing.T) {
	cases := []struct {
		name     string
		sampling model.Sampling
		want     any
		present  bool
	}{
		{"zero is sent", model.Sampling{Temperature: model.Float32(0)}, float64(0), true},
		{"unset is omitted", model.Sampling{}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&got)
				writeJSON(w, http.StatusOK, map[string]any{
					"choices": []map[string]any{
						{"index": 0, "message": map[string]any{"role": "assistant", "content": "ok"}, "finish_reason": "stop"},
					},
				})
			}))
			defer server.Close()

			client := NewClient("test-key", server.URL, "test-model", "", tc.sampling)
			if _, err := client.Complete(context.Background(), testRequest()); err != nil {
				t.Fatal(err)
			}
			value, ok := got["temperature"]
			if ok != tc.present || value != tc.want {
				t.Fatalf("expected temperature %v (present=%v), got %v (present=%v)", tc.want, tc.present, value, ok)
			}
		})
	}
}
