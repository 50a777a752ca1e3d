package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider is one LLM backend able to complete a prompt into a JSON document
// ⭐ SSOT: LLM 호출 인터페이스는 여기서만 정의
type Provider interface {
	// Name is the stable provider identifier ("openai", "gemini")
	Name() string

	// Model is the concrete model the provider calls
	Model() string

	// Complete runs the prompt and returns the raw JSON object the model
	// produced. Implementations strip markdown fences and verify the payload
	// decodes as a JSON object before returning it.
	Complete(ctx context.Context, prompt string) (json.RawMessage, error)
}

// ErrorKind classifies provider failures so the runner can decide whether a
// secondary attempt is worth making.
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "timeout"
	ErrRateLimit       ErrorKind = "rate_limit"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrAuth            ErrorKind = "auth"
)

// Error wraps a provider failure with its classification
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified provider error
func NewError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// Retryable reports whether a failure of this kind can succeed on a
// different provider. Auth failures cannot; everything else might.
func (e *Error) Retryable() bool {
	return e.Kind != ErrAuth
}

// statusToKind maps an HTTP status from a provider API to an ErrorKind.
// Unknown transport failures default to timeout.
func statusToKind(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrRateLimit
	case status == 408 || status >= 500:
		return ErrTimeout
	default:
		return ErrInvalidResponse
	}
}

// classifyTransport maps non-HTTP failures. Dial errors, resets and
// cancellations all land on timeout; there is no useful distinction for the
// fallback decision.
func classifyTransport(err error) ErrorKind {
	return ErrTimeout
}

// extractJSON strips markdown code fences and surrounding prose, then
// verifies the remaining text decodes as a JSON object. Models occasionally
// wrap output in ```json fences despite instructions.
func extractJSON(providerName, text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Fall back to the outermost braces when prose surrounds the object
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return nil, NewError(providerName, ErrInvalidResponse, fmt.Errorf("no JSON object in response"))
		}
		s = s[start : end+1]
	}

	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, NewError(providerName, ErrInvalidResponse, fmt.Errorf("response is not a JSON object: %w", err))
	}

	return json.RawMessage(s), nil
}
