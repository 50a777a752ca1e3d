package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/oracle/internal/analysis/prompt"
	"github.com/wonny/oracle/internal/analysis/runner"
	"github.com/wonny/oracle/internal/analysis/translate"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

// CreateRequest is one analysis-creation request after boundary validation
type CreateRequest struct {
	Kind     contracts.AnalysisKind
	Date     time.Time
	Tickers  []string
	Window   string
	Policy   contracts.LLMPolicy
	Provider string // SINGLE override; empty uses the configured primary
}

// Publisher receives every newly persisted record. The websocket hub
// implements this; a nil publisher is fine.
type Publisher interface {
	Publish(rec *contracts.AnalysisRecord)
}

// Service runs the full creation pipeline:
// prompt → policy runner → provenance metadata → translate → persist
// ⭐ SSOT: 분석 생성 파이프라인은 여기서만
type Service struct {
	builder       *prompt.Builder
	runner        *runner.Runner
	translator    *translate.Translator
	store         contracts.AnalysisStore
	publisher     Publisher
	defaultPolicy contracts.LLMPolicy
	logger        *logger.Logger
}

// NewService wires the creation pipeline
func NewService(
	builder *prompt.Builder,
	run *runner.Runner,
	translator *translate.Translator,
	st contracts.AnalysisStore,
	publisher Publisher,
	defaultPolicy contracts.LLMPolicy,
	log *logger.Logger,
) *Service {
	return &Service{
		builder:       builder,
		runner:        run,
		translator:    translator,
		store:         st,
		publisher:     publisher,
		defaultPolicy: defaultPolicy,
		logger:        log,
	}
}

// Create produces and persists analysis records for one request. BOTH can
// persist one record per successful provider; every other policy persists
// exactly one.
func (s *Service) Create(ctx context.Context, req CreateRequest) ([]*contracts.AnalysisRecord, error) {
	policy := req.Policy
	if policy == "" {
		policy = s.defaultPolicy
	}
	if policy == "" {
		policy = contracts.PolicyAuto
	}

	date := contracts.DateOnly(req.Date)

	promptText, err := s.builder.Build(req.Kind, prompt.Params{
		Date:    date,
		Tickers: req.Tickers,
		Window:  req.Window,
	})
	if err != nil {
		return nil, err
	}
	promptHash := prompt.Hash(promptText)

	log := s.logger.WithFields(map[string]interface{}{
		"kind":   string(req.Kind),
		"date":   date.Format("2006-01-02"),
		"policy": string(policy),
	})
	log.Info("Starting analysis run")

	out, err := s.runner.Run(ctx, req.Kind, promptText, policy, req.Provider)
	if err != nil {
		log.WithError(err).Error("Analysis run failed")
		return nil, err
	}

	records := make([]*contracts.AnalysisRecord, 0, len(out.Results))
	for _, res := range out.Results {
		value := res.Value

		// Single-ticker requests promote the ticker to the top level so
		// exact-date reads can filter in the store
		if len(req.Tickers) == 1 {
			if _, ok := value["ticker"]; !ok {
				value["ticker"] = req.Tickers[0]
			}
		}

		value["metadata"] = buildMetadata(res, policy, promptHash, req.Window, out.Notes)

		value = s.translator.Translate(ctx, req.Kind, value)

		id, err := s.store.Write(ctx, req.Kind, date, value)
		if err != nil {
			return nil, fmt.Errorf("failed to persist analysis: %w", err)
		}

		rec := &contracts.AnalysisRecord{
			ID:        id,
			Name:      req.Kind,
			Date:      date,
			Value:     value,
			CreatedAt: time.Now().UTC(),
		}
		records = append(records, rec)

		if s.publisher != nil {
			s.publisher.Publish(rec)
		}

		log.WithFields(map[string]interface{}{
			"record_id": id,
			"ai_model":  res.AIModel,
		}).Info("Analysis record persisted")
	}

	return records, nil
}

// buildMetadata assembles the provenance block stored under value.metadata
func buildMetadata(res runner.Result, policy contracts.LLMPolicy, promptHash, window string, notes []string) map[string]interface{} {
	meta := map[string]interface{}{
		"ai_model":    res.AIModel,
		"provider":    res.Provider,
		"model":       res.Model,
		"llm_policy":  string(policy),
		"prompt_hash": promptHash,
	}
	if window != "" {
		meta["window"] = window
	}
	if len(notes) > 0 {
		meta["provenance"] = notes
	}
	return meta
}
