package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies upstream failures for user-facing reporting.
type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindContextTooLong  Kind = "context_too_long"
	KindContentFiltered Kind = "content_filtered"
	KindNotFound        Kind = "not_found"
	KindUnknown         Kind = "unknown"
)

// ParseKind maps a kind name back to a Kind; unrecognized names are Unknown.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRateLimited, KindContextTooLong, KindContentFiltered, KindNotFound:
		return k
	default:
		return KindUnknown
	}
}

// UpstreamError is returned by every backend when a completion fails.
type UpstreamError struct {
	Kind    Kind
	Backend string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := "upstream error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s provider error kind=%s status=%d: %s", e.Backend, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s provider error kind=%s: %s", e.Backend, e.Kind, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Message returns the upstream message without classification decoration.
func (e *UpstreamError) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf returns the classification of err, or KindUnknown when err is not
// an UpstreamError.
func KindOf(err error) Kind {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Kind
	}
	return KindUnknown
}

// Classify wraps err as an UpstreamError, deciding the kind by HTTP status
// first and by well-known markers in the error text second.
func Classify(backend string, status int, err error) *UpstreamError {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream
	}
	kind := kindFromStatus(status)
	if kind == KindUnknown && err != nil {
		kind = kindFromText(err.Error())
	}
	return &UpstreamError{Kind: kind, Backend: backend, Status: status, Err: err}
}

func kindFromStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusRequestEntityTooLarge:
		return KindContextTooLong
	default:
		return KindUnknown
	}
}

func kindFromText(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "429", "rate_limit", "rate limit", "too many requests"):
		return KindRateLimited
	case containsAny(lower, "context_length", "maximum context", "prompt is too long", "too long", "request_too_large"):
		return KindContextTooLong
	case containsAny(lower, "safety", "content_filter", "content filter", "refusal"):
		return KindContentFiltered
	case containsAny(lower, "404", "not_found", "model_not_found", "not found"):
		return KindNotFound
	default:
		return KindUnknown
	}
}

func containsAny(s string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
