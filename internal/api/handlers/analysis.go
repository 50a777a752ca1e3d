package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/oracle/internal/analysis"
	"github.com/wonny/oracle/internal/analysis/provider"
	"github.com/wonny/oracle/internal/contracts"
	"github.com/wonny/oracle/pkg/database"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// AnalysisHandler handles analysis creation and retrieval endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	service *analysis.Service
	query   *analysis.QueryService
	cache   *redis.Cache
	db      *database.DB
	logger  *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. cache and db may be nil
// in tests.
func NewAnalysisHandler(
	svc *analysis.Service,
	query *analysis.QueryService,
	cache *redis.Cache,
	db *database.DB,
	log *logger.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		service: svc,
		query:   query,
		cache:   cache,
		db:      db,
		logger:  log,
	}
}

// createRequest is the POST /api/analysis/{kind} body
type createRequest struct {
	TargetDate string   `json:"target_date"`
	Tickers    []string `json:"tickers"`
	Window     string   `json:"window"`
	LLMPolicy  string   `json:"llm_policy"`
	Provider   string   `json:"provider"`
}

// Create runs the analysis pipeline for one kind
// POST /api/analysis/{kind}
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, err := contracts.ParseAnalysisKind(mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown analysis kind")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := parseTargetDate(req.TargetDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}

	policy, err := contracts.ParseLLMPolicy(req.LLMPolicy)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown llm_policy")
		return
	}

	records, err := h.service.Create(ctx, analysis.CreateRequest{
		Kind:     kind,
		Date:     date,
		Tickers:  normalizeTickers(req.Tickers),
		Window:   req.Window,
		Policy:   policy,
		Provider: req.Provider,
	})
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"kind": string(kind),
		}).Error("Analysis creation failed")

		var perr *provider.Error
		if errors.As(err, &perr) || strings.Contains(err.Error(), "providers failed") {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create analysis")
		return
	}

	// A successful write invalidates the day's cached envelope
	if h.cache != nil {
		key := redis.AnalysisKey(string(kind), contracts.DateOnly(date).Format("2006-01-02"))
		if err := h.cache.Delete(ctx, key); err != nil {
			h.logger.WithError(err).Warn("Failed to invalidate analysis cache")
		}
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Get returns the records for an exact date with filter/sort/limit applied
// GET /api/analysis/{kind}?target_date=...&tickers=...&sort_by=...
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.retrieve(w, r, false)
}

// GetNearest resolves the latest available date at or before the target
// GET /api/analysis/{kind}/nearest?target_date=...
func (h *AnalysisHandler) GetNearest(w http.ResponseWriter, r *http.Request) {
	h.retrieve(w, r, true)
}

func (h *AnalysisHandler) retrieve(w http.ResponseWriter, r *http.Request, nearest bool) {
	ctx := r.Context()

	kind, err := contracts.ParseAnalysisKind(mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown analysis kind")
		return
	}

	q := r.URL.Query()

	date, err := parseTargetDate(q.Get("target_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}

	sortOrder := strings.ToLower(q.Get("sort_order"))
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		respondError(w, http.StatusBadRequest, "sort_order must be asc or desc")
		return
	}

	req := analysis.QueryRequest{
		Kind:           kind,
		Date:           date,
		Tickers:        splitParam(q.Get("tickers")),
		Action:         q.Get("action"),
		Recommendation: q.Get("recommendation"),
		SortBy:         q.Get("sort_by"),
		SortOrder:      sortOrder,
		Limit:          limit,
		Nearest:        nearest,
	}

	// Unfiltered exact-date reads are cacheable
	cacheable := h.cache != nil && !nearest && len(req.Tickers) == 0 &&
		req.Action == "" && req.Recommendation == "" && req.SortBy == "" && limit == 0
	cacheKey := redis.AnalysisKey(string(kind), contracts.DateOnly(date).Format("2006-01-02"))

	if cacheable {
		var cached analysis.Envelope
		if hit, _ := h.cache.Get(ctx, cacheKey, &cached); hit {
			respondJSON(w, http.StatusOK, &cached)
			return
		}
	}

	env, err := h.query.Query(ctx, req)
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			respondError(w, http.StatusNotFound, "no analysis data found")
			return
		}
		h.logger.WithError(err).Error("Analysis retrieval failed")
		respondError(w, http.StatusInternalServerError, "failed to read analysis")
		return
	}

	if cacheable {
		if err := h.cache.Set(ctx, cacheKey, env, redis.TTLShort); err != nil {
			h.logger.WithError(err).Warn("Failed to cache analysis envelope")
		}
	}

	respondJSON(w, http.StatusOK, env)
}

// Health returns server health status
// GET /health
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": "oracle-api",
	}

	if h.db != nil {
		hs, err := h.db.HealthCheck(r.Context())
		body["database"] = hs
		if err != nil || !hs.Healthy {
			body["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	respondJSON(w, http.StatusOK, body)
}

// parseTargetDate parses YYYY-MM-DD; empty means today (UTC)
func parseTargetDate(s string) (time.Time, error) {
	if s == "" {
		return contracts.DateOnly(time.Now().UTC()), nil
	}
	return time.Parse("2006-01-02", s)
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
