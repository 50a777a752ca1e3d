package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

// Result is one schema-valid document produced by a run. AIModel is the tag
// persisted into value.metadata: the concrete model id, or "HYBRID" for a
// merged document.
type Result struct {
	Value    map[string]interface{}
	Provider string
	Model    string
	AIModel  string
}

// Output collects all documents a policy produced plus provenance notes.
// BOTH can yield two results; every other policy yields exactly one.
type Output struct {
	Results []Result
	Notes   []string
}

// Runner drives provider calls according to the requested policy
// ⭐ SSOT: 정책 오케스트레이션은 여기서만
type Runner struct {
	registry  *schema.Registry
	providers map[string]provider.Provider
	primary   string
	secondary string
	logger    *logger.Logger
}

// New creates a runner over the given providers. primary/secondary name the
// provider order for AUTO, FALLBACK, BOTH and HYBRID.
func New(registry *schema.Registry, providers map[string]provider.Provider, primary, secondary string, log *logger.Logger) *Runner {
	return &Runner{
		registry:  registry,
		providers: providers,
		primary:   primary,
		secondary: secondary,
		logger:    log,
	}
}

// Run executes one analysis prompt under the given policy. providerOverride
// names the provider for SINGLE; empty means the configured primary.
func (r *Runner) Run(ctx context.Context, kind contracts.AnalysisKind, prompt string, policy contracts.LLMPolicy, providerOverride string) (*Output, error) {
	// AUTO is documented as FALLBACK in the configured provider order
	if policy == contracts.PolicyAuto {
		policy = contracts.PolicyFallback
	}

	switch policy {
	case contracts.PolicySingle:
		return r.runSingle(ctx, kind, prompt, providerOverride)
	case contracts.PolicyFallback:
		return r.runFallback(ctx, kind, prompt)
	case contracts.PolicyBoth:
		return r.runBoth(ctx, kind, prompt)
	case contracts.PolicyHybrid:
		return r.runHybrid(ctx, kind, prompt)
	}
	return nil, contracts.ErrUnknownPolicy
}

// attempt calls one provider and validates the document against the schema.
// A schema violation is reported as an invalid_response provider error so it
// follows the same fallback/exclusion path as a transport failure.
func (r *Runner) attempt(ctx context.Context, kind contracts.AnalysisKind, p provider.Provider, prompt string) (map[string]interface{}, error) {
	raw, err := p.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, provider.NewError(p.Name(), provider.ErrInvalidResponse, err)
	}

	if err := r.registry.Validate(kind, doc); err != nil {
		r.logger.WithFields(map[string]interface{}{
			"kind":     string(kind),
			"provider": p.Name(),
		}).WithError(err).Warn("Provider output failed schema validation")
		return nil, provider.NewError(p.Name(), provider.ErrInvalidResponse, err)
	}

	return doc, nil
}

func (r *Runner) resolve(name string) (provider.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

func (r *Runner) runSingle(ctx context.Context, kind contracts.AnalysisKind, prompt, override string) (*Output, error) {
	name := override
	if name == "" {
		name = r.primary
	}
	p, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	doc, err := r.attempt(ctx, kind, p, prompt)
	if err != nil {
		return nil, err
	}

	return &Output{Results: []Result{{Value: doc, Provider: p.Name(), Model: p.Model(), AIModel: p.Model()}}}, nil
}

func (r *Runner) runFallback(ctx context.Context, kind contracts.AnalysisKind, prompt string) (*Output, error) {
	primary, err := r.resolve(r.primary)
	if err != nil {
		return nil, err
	}

	doc, primaryErr := r.attempt(ctx, kind, primary, prompt)
	if primaryErr == nil {
		return &Output{Results: []Result{{Value: doc, Provider: primary.Name(), Model: primary.Model(), AIModel: primary.Model()}}}, nil
	}

	r.logger.WithFields(map[string]interface{}{
		"kind":    string(kind),
		"primary": r.primary,
	}).WithError(primaryErr).Warn("Primary provider failed, trying secondary")

	secondary, err := r.resolve(r.secondary)
	if err != nil {
		return nil, primaryErr
	}

	doc, secondaryErr := r.attempt(ctx, kind, secondary, prompt)
	if secondaryErr != nil {
		return nil, fmt.Errorf("both providers failed: primary: %v; secondary: %w", primaryErr, secondaryErr)
	}

	return &Output{
		Results: []Result{{Value: doc, Provider: secondary.Name(), Model: secondary.Model(), AIModel: secondary.Model()}},
		Notes:   []string{fmt.Sprintf("primary %s failed: %v", r.primary, primaryErr)},
	}, nil
}

type attemptResult struct {
	provider provider.Provider
	doc      map[string]interface{}
	err      error
}

// runPair calls primary and secondary concurrently. Index 0 is primary.
func (r *Runner) runPair(ctx context.Context, kind contracts.AnalysisKind, prompt string) ([2]attemptResult, error) {
	var out [2]attemptResult

	primary, err := r.resolve(r.primary)
	if err != nil {
		return out, err
	}
	secondary, err := r.resolve(r.secondary)
	if err != nil {
		return out, err
	}
	out[0].provider = primary
	out[1].provider = secondary

	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(slot *attemptResult) {
			defer wg.Done()
			slot.doc, slot.err = r.attempt(ctx, kind, slot.provider, prompt)
		}(&out[i])
	}
	wg.Wait()

	return out, nil
}

func (r *Runner) runBoth(ctx context.Context, kind contracts.AnalysisKind, prompt string) (*Output, error) {
	pair, err := r.runPair(ctx, kind, prompt)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	for _, a := range pair {
		if a.err != nil {
			out.Notes = append(out.Notes, fmt.Sprintf("%s failed: %v", a.provider.Name(), a.err))
			continue
		}
		out.Results = append(out.Results, Result{
			Value:    a.doc,
			Provider: a.provider.Name(),
			Model:    a.provider.Model(),
			AIModel:  a.provider.Model(),
		})
	}

	if len(out.Results) == 0 {
		return nil, fmt.Errorf("both providers failed: %v", out.Notes)
	}
	return out, nil
}

func (r *Runner) runHybrid(ctx context.Context, kind contracts.AnalysisKind, prompt string) (*Output, error) {
	pair, err := r.runPair(ctx, kind, prompt)
	if err != nil {
		return nil, err
	}

	primary, secondary := pair[0], pair[1]

	switch {
	case primary.err == nil && secondary.err == nil:
		merged := Merge(primary.doc, secondary.doc)
		return &Output{
			Results: []Result{{
				Value:    merged,
				Provider: primary.provider.Name() + "+" + secondary.provider.Name(),
				Model:    primary.provider.Model() + "+" + secondary.provider.Model(),
				AIModel:  "HYBRID",
			}},
			Notes: []string{
				fmt.Sprintf("merged %s (%s) with %s (%s)",
					primary.provider.Name(), primary.provider.Model(),
					secondary.provider.Name(), secondary.provider.Model()),
			},
		}, nil

	case primary.err == nil:
		return &Output{
			Results: []Result{{Value: primary.doc, Provider: primary.provider.Name(), Model: primary.provider.Model(), AIModel: primary.provider.Model()}},
			Notes:   []string{fmt.Sprintf("secondary %s failed: %v", secondary.provider.Name(), secondary.err)},
		}, nil

	case secondary.err == nil:
		return &Output{
			Results: []Result{{Value: secondary.doc, Provider: secondary.provider.Name(), Model: secondary.provider.Model(), AIModel: secondary.provider.Model()}},
			Notes:   []string{fmt.Sprintf("primary %s failed: %v", primary.provider.Name(), primary.err)},
		}, nil
	}

	return nil, fmt.Errorf("both providers failed: primary: %v; secondary: %v", primary.err, secondary.err)
}
