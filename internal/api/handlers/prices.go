package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/oracle/internal/marketdata"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// PricesHandler handles market data endpoints
// ⭐ SSOT: 시세 API 핸들러는 이 구조체에서만
type PricesHandler struct {
	client       *marketdata.Client
	fundamentals *marketdata.FundamentalsClient
	repo         *marketdata.PriceRepository
	cache        *redis.Cache
	logger       *logger.Logger
}

// NewPricesHandler creates a new prices handler
func NewPricesHandler(
	client *marketdata.Client,
	fundamentals *marketdata.FundamentalsClient,
	repo *marketdata.PriceRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *PricesHandler {
	return &PricesHandler{
		client:       client,
		fundamentals: fundamentals,
		repo:         repo,
		cache:        cache,
		logger:       log,
	}
}

// GetPrices returns stored daily bars for a ticker
// GET /api/prices/{ticker}?days=30
func (h *PricesHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := normalizeTicker(mux.Vars(r)["ticker"])
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	cacheKey := redis.PriceKey(ticker, to.Format("2006-01-02"))
	if h.cache != nil && days == 30 {
		var cached []marketdata.DailyPrice
		if hit, _ := h.cache.Get(ctx, cacheKey, &cached); hit {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"ticker": ticker,
				"prices": cached,
				"count":  len(cached),
			})
			return
		}
	}

	prices, err := h.repo.GetDailyPrices(ctx, ticker, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
		}).Error("Failed to read prices")
		respondError(w, http.StatusInternalServerError, "failed to read prices")
		return
	}

	if len(prices) == 0 {
		respondError(w, http.StatusNotFound, "no price data found")
		return
	}

	if h.cache != nil && days == 30 {
		if err := h.cache.Set(ctx, cacheKey, prices, redis.TTLDaily); err != nil {
			h.logger.WithError(err).Warn("Failed to cache prices")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": ticker,
		"prices": prices,
		"count":  len(prices),
	})
}

// Collect fetches bars from the source and upserts them
// POST /api/prices/{ticker}/collect?days=90
func (h *PricesHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := normalizeTicker(mux.Vars(r)["ticker"])
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	days := 90
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	prices, err := h.client.FetchDailyPrices(ctx, ticker, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
		}).Error("Price collection failed")
		respondError(w, http.StatusBadGateway, "failed to fetch prices from source")
		return
	}

	count, err := h.repo.UpsertDailyPrices(ctx, prices)
	if err != nil {
		h.logger.WithError(err).Error("Price upsert failed")
		respondError(w, http.StatusInternalServerError, "failed to store prices")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":    ticker,
		"collected": count,
	})
}

// GetFundamentals scrapes and returns the fundamentals snapshot
// GET /api/fundamentals/{ticker}
func (h *PricesHandler) GetFundamentals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := normalizeTicker(mux.Vars(r)["ticker"])
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	cacheKey := "fundamentals:" + ticker
	if h.cache != nil {
		var cached marketdata.Fundamentals
		if hit, _ := h.cache.Get(ctx, cacheKey, &cached); hit {
			respondJSON(w, http.StatusOK, &cached)
			return
		}
	}

	f, err := h.fundamentals.FetchFundamentals(ctx, ticker)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker": ticker,
		}).Error("Fundamentals fetch failed")
		respondError(w, http.StatusBadGateway, "failed to fetch fundamentals")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, f, redis.TTLMedium); err != nil {
			h.logger.WithError(err).Warn("Failed to cache fundamentals")
		}
	}

	respondJSON(w, http.StatusOK, f)
}
