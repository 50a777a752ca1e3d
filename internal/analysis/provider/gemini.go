package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/logger"
)

// GeminiProvider calls the Gemini API with a JSON response MIME type
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewGemini creates the Gemini provider from config
func NewGemini(ctx context.Context, cfg *config.Config, log *logger.Logger) (*GeminiProvider, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client:  cli,
		model:   cfg.Gemini.Model,
		timeout: cfg.Gemini.Timeout,
		limiter: rate.NewLimiter(rate.Limit(cfg.Gemini.RPS), 1),
		logger:  log.WithField("provider", "gemini"),
	}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

// Complete runs one generation with application/json response type
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, NewError(p.Name(), classifyTransport(err), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, p.classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, NewError(p.Name(), ErrInvalidResponse, fmt.Errorf("empty candidates"))
	}

	p.logger.WithField("model", p.model).Debug("Gemini completion finished")

	return extractJSON(p.Name(), resp.Candidates[0].Content.Parts[0].Text)
}

func (p *GeminiProvider) classify(err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return NewError(p.Name(), statusToKind(apiErr.Code), err)
	}
	return NewError(p.Name(), classifyTransport(err), err)
}
