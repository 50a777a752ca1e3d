package schema

import (
	"github.com/wonny/oracle/internal/contracts"
)

// Registry resolves analysis kinds to their response descriptors
// ⭐ SSOT: 응답 스키마 등록은 이 파일에서만
type Registry struct {
	descriptors map[contracts.AnalysisKind]*Descriptor
}

// NewRegistry builds the registry with every known analysis kind
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[contracts.AnalysisKind]*Descriptor)}
	for _, d := range builtinDescriptors() {
		r.descriptors[d.Kind] = d
	}
	return r
}

// Get returns the descriptor for a kind, or contracts.ErrUnknownKind
func (r *Registry) Get(kind contracts.AnalysisKind) (*Descriptor, error) {
	d, ok := r.descriptors[kind]
	if !ok {
		return nil, contracts.ErrUnknownKind
	}
	return d, nil
}

// Validate checks a document against the schema registered for kind
func (r *Registry) Validate(kind contracts.AnalysisKind, doc map[string]interface{}) error {
	d, err := r.Get(kind)
	if err != nil {
		return err
	}
	return d.Validate(doc)
}

func builtinDescriptors() []*Descriptor {
	keyNews := []Field{
		{Name: "headline", Type: TypeString, Required: true},
		{Name: "source", Type: TypeString, Required: true},
		{Name: "summary", Type: TypeString, Required: true},
	}

	momentumStock := []Field{
		{Name: "ticker", Type: TypeString, Required: true},
		{Name: "name", Type: TypeString, Required: true},
		{Name: "pre_market_change", Type: TypeString, Required: true},
		{Name: "key_news", Type: TypeObject, Required: true, Fields: keyNews},
		{Name: "short_term_strategy", Type: TypeString, Required: true},
	}

	sectorTheme := []Field{
		{Name: "key_theme", Type: TypeString, Required: true},
		{Name: "stocks", Type: TypeArray, Required: true, Elem: momentumStock},
	}

	return []*Descriptor{
		{
			Kind: contracts.KindMarketAnalysis,
			Fields: []Field{
				{Name: "analysis_date_est", Type: TypeString, Required: true},
				{Name: "market_overview", Type: TypeObject, Required: true, Fields: []Field{
					{Name: "summary", Type: TypeString, Required: true},
					{Name: "major_catalysts", Type: TypeArray, Required: true, ElemType: TypeString},
				}},
				{Name: "top_momentum_sectors", Type: TypeArray, Required: true, Elem: []Field{
					{Name: "sector_ranking", Type: TypeInteger, Required: true},
					{Name: "sector", Type: TypeString, Required: true},
					{Name: "reason", Type: TypeString, Required: true},
					{Name: "risk_factor", Type: TypeString, Required: true},
					{Name: "themes", Type: TypeArray, Required: true, Elem: sectorTheme},
				}},
			},
		},
		{
			Kind: contracts.KindMarketForecast,
			Fields: []Field{
				{Name: "outlook", Type: TypeEnum, Required: true, Enum: []string{"UP", "DOWN"}},
				{Name: "reason", Type: TypeString, Required: true},
				{Name: "up_percentage", Type: TypeNumber},
			},
		},
		{
			Kind: contracts.KindETFFlowsWeekly,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "items", Type: TypeArray, Required: true, Elem: []Field{
					{Name: "ticker", Type: TypeString, Required: true},
					{Name: "fund_name", Type: TypeString},
					{Name: "net_flow_musd", Type: TypeNumber, Required: true},
					{Name: "flow_trend", Type: TypeEnum, Required: true, Enum: []string{"inflow", "outflow", "flat"}},
					{Name: "impact", Type: TypeNumber},
					{Name: "comment", Type: TypeString},
				}},
			},
		},
		{
			Kind: contracts.KindInsiderTrend,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "items", Type: TypeArray, Required: true, Elem: []Field{
					{Name: "ticker", Type: TypeString, Required: true},
					{Name: "company", Type: TypeString},
					{Name: "action", Type: TypeEnum, Required: true, Enum: []string{"BUY", "SELL"}},
					{Name: "insider_role", Type: TypeString},
					{Name: "net_shares", Type: TypeNumber},
					{Name: "impact", Type: TypeNumber},
					{Name: "note", Type: TypeString},
				}},
			},
		},
		{
			Kind: contracts.KindLiquidity,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "stance", Type: TypeEnum, Required: true, Enum: []string{"ample", "neutral", "tight"}},
				{Name: "net_liquidity_busd", Type: TypeNumber},
				{Name: "fed_balance_sheet_busd", Type: TypeNumber},
				{Name: "reverse_repo_busd", Type: TypeNumber},
				{Name: "tga_busd", Type: TypeNumber},
				{Name: "comment", Type: TypeString, Required: true},
			},
		},
		{
			Kind: contracts.KindMarketBreadth,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "advancers", Type: TypeInteger, Required: true},
				{Name: "decliners", Type: TypeInteger, Required: true},
				{Name: "ad_ratio", Type: TypeNumber, Required: true},
				{Name: "new_highs", Type: TypeInteger},
				{Name: "new_lows", Type: TypeInteger},
				{Name: "pct_above_200dma", Type: TypeNumber},
				{Name: "comment", Type: TypeString},
			},
		},
		{
			Kind: contracts.KindSignals,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "items", Type: TypeArray, Required: true, Elem: []Field{
					{Name: "ticker", Type: TypeString, Required: true},
					{Name: "action", Type: TypeEnum, Required: true, Enum: []string{"buy", "sell", "hold"}},
					{Name: "entry_price", Type: TypeNumber},
					{Name: "probability", Type: TypeString},
					{Name: "result_description", Type: TypeString},
					{Name: "report_summary", Type: TypeString},
					{Name: "chart_pattern", Type: TypeString},
				}},
			},
		},
		{
			Kind: contracts.KindSectorRotation,
			Fields: []Field{
				{Name: "as_of", Type: TypeString, Required: true},
				{Name: "rotation_view", Type: TypeString, Required: true},
				{Name: "into_sectors", Type: TypeArray, Required: true, ElemType: TypeString},
				{Name: "out_of_sectors", Type: TypeArray, Required: true, ElemType: TypeString},
				{Name: "drivers", Type: TypeArray, ElemType: TypeString},
				{Name: "comment", Type: TypeString},
			},
		},
	}
}
