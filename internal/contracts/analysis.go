package contracts

import (
	"context"
	"errors"
	"time"
)

// AnalysisKind identifies one registered analysis type. It is a closed set;
// free-form strings never reach the store, so a typo cannot create an orphan
// data partition.
type AnalysisKind string

const (
	KindMarketAnalysis AnalysisKind = "market_analysis"
	KindMarketForecast AnalysisKind = "market_forecast"
	KindETFFlowsWeekly AnalysisKind = "etf_flows_weekly"
	KindInsiderTrend   AnalysisKind = "insider_trend"
	KindLiquidity      AnalysisKind = "liquidity"
	KindMarketBreadth  AnalysisKind = "market_breadth"
	KindSignals        AnalysisKind = "signals"
	KindSectorRotation AnalysisKind = "sector_rotation"
)

// AllKinds lists every registered analysis kind
func AllKinds() []AnalysisKind {
	return []AnalysisKind{
		KindMarketAnalysis,
		KindMarketForecast,
		KindETFFlowsWeekly,
		KindInsiderTrend,
		KindLiquidity,
		KindMarketBreadth,
		KindSignals,
		KindSectorRotation,
	}
}

// ErrUnknownKind is returned for a name outside the closed kind set
var ErrUnknownKind = errors.New("unknown analysis kind")

// kindSlugs maps URL slugs (and canonical names) to kinds
var kindSlugs = map[string]AnalysisKind{
	"market-analysis": KindMarketAnalysis,
	"market-forecast": KindMarketForecast,
	"etf-flows":       KindETFFlowsWeekly,
	"insider-trend":   KindInsiderTrend,
	"liquidity":       KindLiquidity,
	"market-breadth":  KindMarketBreadth,
	"signals":         KindSignals,
	"sector-rotation": KindSectorRotation,
}

// ParseAnalysisKind resolves a canonical name or URL slug to an AnalysisKind
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	if k, ok := kindSlugs[s]; ok {
		return k, nil
	}
	return "", ErrUnknownKind
}

// LLMPolicy selects the provider-orchestration strategy for one creation
// request.
type LLMPolicy string

const (
	PolicySingle   LLMPolicy = "SINGLE"
	PolicyFallback LLMPolicy = "FALLBACK"
	PolicyBoth     LLMPolicy = "BOTH"
	PolicyHybrid   LLMPolicy = "HYBRID"
	PolicyAuto     LLMPolicy = "AUTO"
)

// ErrUnknownPolicy is returned for a policy string outside the closed set
var ErrUnknownPolicy = errors.New("unknown llm policy")

// ParseLLMPolicy resolves a policy string; empty selects AUTO
func ParseLLMPolicy(s string) (LLMPolicy, error) {
	switch LLMPolicy(s) {
	case PolicySingle, PolicyFallback, PolicyBoth, PolicyHybrid, PolicyAuto:
		return LLMPolicy(s), nil
	case "":
		return PolicyAuto, nil
	}
	return "", ErrUnknownPolicy
}

// AnalysisRecord is one persisted analysis document
// ⭐ SSOT: 분석 레코드 타입은 여기서만 정의
//
// Records are immutable once written; a re-run for the same (name, date)
// inserts a new record and readers pick the latest by created_at or by the
// ai_model tag inside value.metadata.
type AnalysisRecord struct {
	ID        int64                  `json:"id"`
	Name      AnalysisKind           `json:"name"`
	Date      time.Time              `json:"date"`
	Value     map[string]interface{} `json:"value"`
	CreatedAt time.Time              `json:"created_at"`
}

// Ticker returns the promoted top-level ticker of the record, if any
func (r *AnalysisRecord) Ticker() string {
	if r.Value == nil {
		return ""
	}
	if t, ok := r.Value["ticker"].(string); ok {
		return t
	}
	return ""
}

// NearestScanDays bounds the backward scan of ReadNearest
const NearestScanDays = 30

// ErrNoData is returned when no record exists for the requested kind within
// the backward-scan bound.
var ErrNoData = errors.New("no analysis data found")

// AnalysisStore is the append-only persistence contract for analysis records
// ⭐ SSOT: 저장소 인터페이스는 여기서만 정의
type AnalysisStore interface {
	// Write always inserts; prior records for the same (name, date) are
	// never mutated.
	Write(ctx context.Context, name AnalysisKind, date time.Time, value map[string]interface{}) (int64, error)

	// Read is an exact-date lookup. ticker narrows to records whose
	// promoted value->>'ticker' matches; empty ticker matches all.
	// An empty result is not an error.
	Read(ctx context.Context, name AnalysisKind, date time.Time, ticker string) ([]*AnalysisRecord, error)

	// ReadNearest scans backward from onOrBefore until a non-empty day is
	// found or NearestScanDays is exhausted (ErrNoData). exact reports
	// whether the hit is the requested date itself.
	ReadNearest(ctx context.Context, name AnalysisKind, onOrBefore time.Time) (records []*AnalysisRecord, actualDate time.Time, exact bool, err error)
}

// DateOnly truncates t to a UTC calendar date. All store keys use this form.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
