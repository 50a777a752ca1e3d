package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/oracle/internal/batch"
	"github.com/wonny/oracle/pkg/logger"
	"github.com/wonny/oracle/pkg/redis"
)

// BatchHandler triggers batch analysis runs over the job queue
type BatchHandler struct {
	trigger *batch.Trigger
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(trigger *batch.Trigger, log *logger.Logger) *BatchHandler {
	return &BatchHandler{trigger: trigger, logger: log}
}

// triggerRequest is the POST /api/batch/trigger body
type triggerRequest struct {
	TargetDate string `json:"target_date"`
}

// Trigger enqueues the daily analysis set
// POST /api/batch/trigger
func (h *BatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	date := time.Now().UTC()
	if req.TargetDate != "" {
		parsed, err := time.Parse("2006-01-02", req.TargetDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	enqueued, duplicates, err := h.trigger.EnqueueDaily(ctx, date)
	if err != nil {
		if errors.Is(err, redis.ErrQueueDisabled) {
			respondError(w, http.StatusServiceUnavailable, "job queue is disabled")
			return
		}
		h.logger.WithError(err).Error("Batch trigger failed")
		respondError(w, http.StatusInternalServerError, "failed to enqueue batch")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"target_date": date.Format("2006-01-02"),
		"enqueued":    enqueued,
		"duplicates":  duplicates,
	})
}
