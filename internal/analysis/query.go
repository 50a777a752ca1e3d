package analysis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/logger"
)

// QueryRequest is one retrieval request after boundary validation
type QueryRequest struct {
	Kind           contracts.AnalysisKind
	Date           time.Time
	Tickers        []string
	Action         string
	Recommendation string
	SortBy         string
	SortOrder      string // asc (default) or desc
	Limit          int    // 0 means unlimited
	Nearest        bool   // scan backward when the exact date is empty
}

// Envelope is the retrieval response shape every GET endpoint returns
type Envelope struct {
	Items            []*contracts.AnalysisRecord `json:"items"`
	TotalCount       int                         `json:"total_count"`
	FilteredCount    int                         `json:"filtered_count"`
	ActualDate       string                      `json:"actual_date"`
	IsExactDateMatch bool                        `json:"is_exact_date_match"`
	RequestParams    map[string]interface{}      `json:"request_params"`
}

// QueryService reads records and applies filter/sort/limit client-side.
// The store only supports date and promoted-ticker predicates; everything
// else happens here.
type QueryService struct {
	store  contracts.AnalysisStore
	logger *logger.Logger
}

// NewQueryService creates the retrieval service
func NewQueryService(st contracts.AnalysisStore, log *logger.Logger) *QueryService {
	return &QueryService{store: st, logger: log}
}

// Query resolves the date, filters, sorts, and truncates. contracts.ErrNoData
// comes back only when nearest resolution exhausts the scan bound; an empty
// exact-date read returns an empty envelope instead.
func (q *QueryService) Query(ctx context.Context, req QueryRequest) (*Envelope, error) {
	date := contracts.DateOnly(req.Date)

	var (
		records []*contracts.AnalysisRecord
		actual  = date
		exact   = true
		err     error
	)

	if req.Nearest {
		records, actual, exact, err = q.store.ReadNearest(ctx, req.Kind, date)
		if err != nil {
			if errors.Is(err, contracts.ErrNoData) {
				return nil, contracts.ErrNoData
			}
			return nil, err
		}
	} else {
		records, err = q.store.Read(ctx, req.Kind, date, "")
		if err != nil {
			return nil, err
		}
	}

	total := len(records)

	filtered := records[:0:0]
	for _, rec := range records {
		if q.match(rec, req) {
			filtered = append(filtered, rec)
		}
	}

	sortRecords(filtered, req.SortBy, req.SortOrder)

	filteredCount := len(filtered)
	if req.Limit > 0 && len(filtered) > req.Limit {
		filtered = filtered[:req.Limit]
	}

	if filtered == nil {
		filtered = []*contracts.AnalysisRecord{}
	}

	return &Envelope{
		Items:            filtered,
		TotalCount:       total,
		FilteredCount:    filteredCount,
		ActualDate:       actual.Format("2006-01-02"),
		IsExactDateMatch: exact,
		RequestParams:    requestParams(req, date),
	}, nil
}

// match applies ticker/action/recommendation filters. A record matches a
// ticker when its promoted top-level ticker matches or any element of
// value.items carries it.
func (q *QueryService) match(rec *contracts.AnalysisRecord, req QueryRequest) bool {
	if len(req.Tickers) > 0 && !matchesAnyTicker(rec, req.Tickers) {
		return false
	}
	if req.Action != "" && !matchesField(rec, "action", req.Action) {
		return false
	}
	if req.Recommendation != "" && !matchesField(rec, "recommendation", req.Recommendation) {
		return false
	}
	return true
}

func matchesAnyTicker(rec *contracts.AnalysisRecord, tickers []string) bool {
	for _, t := range tickers {
		if strings.EqualFold(rec.Ticker(), t) {
			return true
		}
		if itemFieldEquals(rec, "ticker", t) {
			return true
		}
	}
	return false
}

func matchesField(rec *contracts.AnalysisRecord, field, want string) bool {
	if v, ok := rec.Value[field].(string); ok && strings.EqualFold(v, want) {
		return true
	}
	return itemFieldEquals(rec, field, want)
}

func itemFieldEquals(rec *contracts.AnalysisRecord, field, want string) bool {
	items, ok := rec.Value["items"].([]interface{})
	if !ok {
		return false
	}
	for _, it := range items {
		obj, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := obj[field].(string); ok && strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// sortRecords is a stable total-order sort over the named value field with
// created_at breaking ties. Empty sortBy orders by created_at alone.
func sortRecords(records []*contracts.AnalysisRecord, sortBy, order string) {
	desc := strings.EqualFold(order, "desc")

	sort.SliceStable(records, func(i, j int) bool {
		if sortBy != "" {
			cmp := compareValues(records[i].Value[sortBy], records[j].Value[sortBy])
			if cmp != 0 {
				if desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		// Tie-break by insertion order regardless of direction
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// compareValues orders mixed JSON scalars: numbers before strings, missing
// values last.
func compareValues(a, b interface{}) int {
	an, aIsNum := toFloat(a)
	bn, bIsNum := toFloat(b)

	switch {
	case aIsNum && bIsNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aIsNum:
		return -1
	case bIsNum:
		return 1
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	switch {
	case aIsStr && bIsStr:
		return strings.Compare(as, bs)
	case aIsStr:
		return -1
	case bIsStr:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func requestParams(req QueryRequest, date time.Time) map[string]interface{} {
	params := map[string]interface{}{
		"name":        string(req.Kind),
		"target_date": date.Format("2006-01-02"),
	}
	if len(req.Tickers) > 0 {
		params["tickers"] = req.Tickers
	}
	if req.Action != "" {
		params["action"] = req.Action
	}
	if req.Recommendation != "" {
		params["recommendation"] = req.Recommendation
	}
	if req.SortBy != "" {
		params["sort_by"] = req.SortBy
		order := req.SortOrder
		if order == "" {
			order = "asc"
		}
		params["sort_order"] = strings.ToLower(order)
	}
	if req.Limit > 0 {
		params["limit"] = req.Limit
	}
	return params
}
