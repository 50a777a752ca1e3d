package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wonny/oracle/internal/analysis/prompt"
	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/analysis/runner"
	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/analysis/store"
	"github.com/wonny/oracle/internal/analysis/translate"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

type stubProvider struct {
	name     string
	model    string
	response string
	err      error
	calls    int
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.model }

func (s *stubProvider) Complete(ctx context.Context, p string) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

type capturePublisher struct {
	published []*contracts.AnalysisRecord
}

func (c *capturePublisher) Publish(rec *contracts.AnalysisRecord) {
	c.published = append(c.published, rec)
}

const validSignals = `{"as_of":"2025-01-15","items":[{"ticker":"QQQ","action":"buy"}]}`

func newTestService(primary, secondary *stubProvider, translator *translate.Translator, pub Publisher) (*Service, *store.MemoryStore) {
	reg := schema.NewRegistry()
	log := logger.NewNop()

	providers := map[string]provider.Provider{
		primary.name:   primary,
		secondary.name: secondary,
	}
	run := runner.New(reg, providers, primary.name, secondary.name, log)

	if translator == nil {
		translator = translate.New(nil, reg, "Korean", false, log)
	}

	st := store.NewMemoryStore()
	svc := NewService(prompt.NewBuilder(reg), run, translator, st, pub, contracts.PolicyAuto, log)
	return svc, st
}

func TestCreatePersistsValidatedRecord(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-4o-mini", response: validSignals}
	s := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: validSignals}
	pub := &capturePublisher{}
	svc, st := newTestService(p, s, nil, pub)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	records, err := svc.Create(context.Background(), CreateRequest{
		Kind:    contracts.KindSignals,
		Date:    date,
		Tickers: []string{"QQQ"},
		Policy:  contracts.PolicyFallback,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Name != contracts.KindSignals {
		t.Errorf("Expected signals kind, got %s", rec.Name)
	}
	if rec.Ticker() != "QQQ" {
		t.Error("Single-ticker request must promote the ticker")
	}

	meta, ok := rec.Value["metadata"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected metadata block")
	}
	if meta["ai_model"] != "gpt-4o-mini" {
		t.Errorf("Expected model tag, got %v", meta["ai_model"])
	}
	if meta["llm_policy"] != "FALLBACK" {
		t.Errorf("Expected policy tag, got %v", meta["llm_policy"])
	}
	if hash, _ := meta["prompt_hash"].(string); len(hash) != 64 {
		t.Error("Expected sha256 prompt hash")
	}

	stored, err := st.Read(context.Background(), contracts.KindSignals, date, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected 1 stored record, got %d", len(stored))
	}

	if len(pub.published) != 1 {
		t.Error("Expected the new record published to subscribers")
	}
}

func TestCreateBothPersistsTwoRecords(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-4o-mini", response: validSignals}
	s := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: validSignals}
	svc, st := newTestService(p, s, nil, nil)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	records, err := svc.Create(context.Background(), CreateRequest{
		Kind:   contracts.KindSignals,
		Date:   date,
		Policy: contracts.PolicyBoth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("BOTH must persist one record per provider, got %d", len(records))
	}

	stored, _ := st.Read(context.Background(), contracts.KindSignals, date, "")
	if len(stored) != 2 {
		t.Fatalf("Expected 2 stored records, got %d", len(stored))
	}

	tags := map[interface{}]bool{}
	for _, rec := range stored {
		meta := rec.Value["metadata"].(map[string]interface{})
		tags[meta["ai_model"]] = true
	}
	if !tags["gpt-4o-mini"] || !tags["gemini-2.5-flash"] {
		t.Errorf("Each record must carry its own model tag, got %v", tags)
	}
}

func TestCreateTranslationFailureStillPersists(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-4o-mini", response: validSignals}
	s := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: validSignals}

	reg := schema.NewRegistry()
	failing := &stubProvider{name: "translator", model: "t", err: errors.New("always down")}
	translator := translate.New(failing, reg, "Korean", true, logger.NewNop())

	svc, st := newTestService(p, s, translator, nil)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	records, err := svc.Create(context.Background(), CreateRequest{
		Kind:   contracts.KindSignals,
		Date:   date,
		Policy: contracts.PolicySingle,
	})
	if err != nil {
		t.Fatalf("Translation failure must never block persistence: %v", err)
	}

	items := records[0].Value["items"].([]interface{})
	first := items[0].(map[string]interface{})
	if first["ticker"] != "QQQ" {
		t.Error("Persisted value must equal the pre-translation document")
	}

	stored, _ := st.Read(context.Background(), contracts.KindSignals, date, "")
	if len(stored) != 1 {
		t.Error("Record must be persisted despite translation failure")
	}
}

func TestCreateFailsWhenAllProvidersFail(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-4o-mini",
		err: provider.NewError("openai", provider.ErrTimeout, context.DeadlineExceeded)}
	s := &stubProvider{name: "gemini", model: "gemini-2.5-flash",
		err: provider.NewError("gemini", provider.ErrTimeout, context.DeadlineExceeded)}
	svc, st := newTestService(p, s, nil, nil)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateRequest{
		Kind:   contracts.KindSignals,
		Date:   date,
		Policy: contracts.PolicyFallback,
	})
	if err == nil {
		t.Fatal("Expected error when every provider fails")
	}

	stored, _ := st.Read(context.Background(), contracts.KindSignals, date, "")
	if len(stored) != 0 {
		t.Error("Nothing may be persisted on total failure")
	}
}

func TestCreateUnknownKindRejectedBeforeProviderCall(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-4o-mini", response: validSignals}
	s := &stubProvider{name: "gemini", model: "gemini-2.5-flash", response: validSignals}
	svc, _ := newTestService(p, s, nil, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		Kind: contracts.AnalysisKind("astrology"),
		Date: time.Now(),
	})
	if !errors.Is(err, contracts.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if p.calls != 0 || s.calls != 0 {
		t.Error("Unknown kind must be rejected before any provider call")
	}
}
