package translate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

type stubProvider struct {
	response string
	err      error
	calls    int
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

func forecastDoc() map[string]interface{} {
	return map[string]interface{}{
		"outlook": "UP",
		"reason":  "breadth thrust",
		"metadata": map[string]interface{}{
			"ai_model": "gpt-4o-mini",
		},
	}
}

func TestTranslateSuccess(t *testing.T) {
	p := &stubProvider{response: `{"outlook":"UP","reason":"상승 탄력 확대"}`}
	tr := New(p, schema.NewRegistry(), "Korean", true, logger.NewNop())

	out := tr.Translate(context.Background(), contracts.KindMarketForecast, forecastDoc())

	if out["reason"] != "상승 탄력 확대" {
		t.Errorf("Expected translated reason, got %v", out["reason"])
	}
	if out["outlook"] != "UP" {
		t.Error("Enum values must not change")
	}
	meta, ok := out["metadata"].(map[string]interface{})
	if !ok || meta["ai_model"] != "gpt-4o-mini" {
		t.Error("Metadata must be reattached untouched")
	}
}

func TestTranslateFailurePassesThrough(t *testing.T) {
	p := &stubProvider{err: errors.New("provider down")}
	tr := New(p, schema.NewRegistry(), "Korean", true, logger.NewNop())

	doc := forecastDoc()
	out := tr.Translate(context.Background(), contracts.KindMarketForecast, doc)

	if out["reason"] != "breadth thrust" {
		t.Error("Failure must return the original document")
	}
}

func TestTranslateInvalidOutputPassesThrough(t *testing.T) {
	// Translation that drops a required field must be discarded
	p := &stubProvider{response: `{"outlook":"UP"}`}
	tr := New(p, schema.NewRegistry(), "Korean", true, logger.NewNop())

	out := tr.Translate(context.Background(), contracts.KindMarketForecast, forecastDoc())

	if out["reason"] != "breadth thrust" {
		t.Error("Schema-breaking translation must be discarded")
	}
}

func TestTranslateDisabled(t *testing.T) {
	p := &stubProvider{response: `{"outlook":"UP","reason":"번역됨"}`}
	tr := New(p, schema.NewRegistry(), "Korean", false, logger.NewNop())

	out := tr.Translate(context.Background(), contracts.KindMarketForecast, forecastDoc())

	if p.calls != 0 {
		t.Error("Disabled translator must not call the provider")
	}
	if out["reason"] != "breadth thrust" {
		t.Error("Disabled translator must pass through")
	}
}

func TestTranslateNilProvider(t *testing.T) {
	tr := New(nil, schema.NewRegistry(), "Korean", true, logger.NewNop())

	out := tr.Translate(context.Background(), contracts.KindMarketForecast, forecastDoc())
	if out["reason"] != "breadth thrust" {
		t.Error("Nil provider must pass through")
	}
}
