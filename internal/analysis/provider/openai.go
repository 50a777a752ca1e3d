package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/logger"
)

const openaiMaxTokens = 4096

// OpenAIProvider calls the OpenAI chat completion API in JSON mode
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewOpenAI creates the OpenAI provider from config
func NewOpenAI(cfg *config.Config, log *logger.Logger) (*OpenAIProvider, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &OpenAIProvider{
		client:  openai.NewClient(cfg.OpenAI.APIKey),
		model:   cfg.OpenAI.Model,
		timeout: cfg.OpenAI.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.OpenAI.RPS), 1),
		logger:  log.WithField("provider", "openai"),
	}, nil
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete runs a single JSON-mode chat completion
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, NewError(p.Name(), classifyTransport(err), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// Reasoning models reject MaxTokens
	if strings.HasPrefix(p.model, "o1") || strings.HasPrefix(p.model, "o3") || strings.HasPrefix(p.model, "gpt-5") {
		req.MaxCompletionTokens = openaiMaxTokens
	} else {
		req.MaxTokens = openaiMaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(p.Name(), ErrInvalidResponse, fmt.Errorf("empty choices"))
	}

	p.logger.WithFields(map[string]interface{}{
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("OpenAI completion finished")

	return extractJSON(p.Name(), resp.Choices[0].Message.Content)
}

func (p *OpenAIProvider) classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewError(p.Name(), statusToKind(apiErr.HTTPStatusCode), err)
	}
	return NewError(p.Name(), classifyTransport(err), err)
}
