package commands

import (
	"context"
	"fmt"

	"github.com/wonny/oracle/internal/analysis"
	"github.com/wonny/oracle/internal/analysis/prompt"
	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/analysis/runner"
	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/analysis/translate"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/config"
	"github.com/wonny/oracle/pkg/logger"
)

// buildProviders creates every configured LLM provider. A provider with a
// missing key is skipped with a warning; at least the primary must come up.
func buildProviders(ctx context.Context, cfg *config.Config, log *logger.Logger) (map[string]provider.Provider, error) {
	providers := make(map[string]provider.Provider)

	if openaiProvider, err := provider.NewOpenAI(cfg, log); err != nil {
		log.WithError(err).Warn("OpenAI provider unavailable")
	} else {
		providers[openaiProvider.Name()] = openaiProvider
	}

	if geminiProvider, err := provider.NewGemini(ctx, cfg, log); err != nil {
		log.WithError(err).Warn("Gemini provider unavailable")
	} else {
		providers[geminiProvider.Name()] = geminiProvider
	}

	if _, ok := providers[cfg.LLM.Primary]; !ok {
		return nil, fmt.Errorf("primary provider %q is not available", cfg.LLM.Primary)
	}

	return providers, nil
}

// buildPipeline wires the creation pipeline on top of a store. publisher may
// be nil.
func buildPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger, st contracts.AnalysisStore, publisher analysis.Publisher) (*analysis.Service, *analysis.QueryService, error) {
	registry := schema.NewRegistry()

	providers, err := buildProviders(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	run := runner.New(registry, providers, cfg.LLM.Primary, cfg.LLM.Secondary, log)

	// The secondary provider doubles as the translator; analyses come from
	// the primary, so translation load lands elsewhere
	translateProvider := providers[cfg.LLM.Secondary]
	if translateProvider == nil {
		translateProvider = providers[cfg.LLM.Primary]
	}
	translator := translate.New(translateProvider, registry, cfg.LLM.TranslateLanguage, cfg.LLM.TranslateEnabled, log)

	defaultPolicy, err := contracts.ParseLLMPolicy(cfg.LLM.DefaultPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LLM_DEFAULT_POLICY: %w", err)
	}

	svc := analysis.NewService(prompt.NewBuilder(registry), run, translator, st, publisher, defaultPolicy, log)
	query := analysis.NewQueryService(st, log)
	return svc, query, nil
}
