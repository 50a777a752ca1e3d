package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/analysis/schema"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

// Translator rewrites natural-language string fields of an analysis document
// into the target language. Translation is best-effort: any failure logs a
// warning and returns the document unchanged, never blocking persistence.
type Translator struct {
	provider provider.Provider
	registry *schema.Registry
	language string
	enabled  bool
	logger   *logger.Logger
}

// New creates a translator. A nil provider or enabled=false produces a
// passthrough translator.
func New(p provider.Provider, registry *schema.Registry, language string, enabled bool, log *logger.Logger) *Translator {
	return &Translator{
		provider: p,
		registry: registry,
		language: language,
		enabled:  enabled && p != nil,
		logger:   log,
	}
}

// Translate returns the document with natural-language strings rewritten in
// the target language. The metadata subtree, tickers, enums and numbers are
// left untouched. On any failure the original document comes back.
func (t *Translator) Translate(ctx context.Context, kind contracts.AnalysisKind, doc map[string]interface{}) map[string]interface{} {
	if !t.enabled {
		return doc
	}

	// metadata carries provenance, never prose
	meta, hadMeta := doc["metadata"]
	body := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "metadata" {
			continue
		}
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		t.logger.WithError(err).Warn("Translation skipped: document not marshalable")
		return doc
	}

	prompt := fmt.Sprintf(
		"Translate the natural-language string values in this JSON document into %s.\n"+
			"Keep every key exactly as it is. Do not translate ticker symbols, enum values "+
			"(such as buy/sell/hold, UP/DOWN, inflow/outflow), dates, or numbers.\n"+
			"Respond with the translated JSON object only.\n\n%s",
		t.language, payload)

	raw, err := t.provider.Complete(ctx, prompt)
	if err != nil {
		t.logger.WithFields(map[string]interface{}{
			"kind":     string(kind),
			"language": t.language,
		}).WithError(err).Warn("Translation failed, persisting original document")
		return doc
	}

	var translated map[string]interface{}
	if err := json.Unmarshal(raw, &translated); err != nil {
		t.logger.WithError(err).Warn("Translation returned invalid JSON, persisting original")
		return doc
	}

	// A translation that breaks the schema is discarded, not persisted
	if err := t.registry.Validate(kind, translated); err != nil {
		t.logger.WithFields(map[string]interface{}{
			"kind": string(kind),
		}).WithError(err).Warn("Translated document failed schema validation, persisting original")
		return doc
	}

	if hadMeta {
		translated["metadata"] = meta
	}
	return translated
}
