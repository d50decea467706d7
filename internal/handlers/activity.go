package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"stepcoin/internal/middleware"
	"stepcoin/internal/models"
	"stepcoin/internal/validator"

	"github.com/shopspring/decimal"
)

type sampleRequest struct {
	Steps          int64           `json:"steps"`
	DistanceMeters decimal.Decimal `json:"distance_meters"`
	SampledAt      time.Time       `json:"sampled_at"`
}

// PushSample accepts cumulative counters from a device and accrues them
// immediately.
func (h *Handler) PushSample(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateSample(req.Steps, req.DistanceMeters, req.SampledAt, time.Now()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.accrual.Accrue(r.Context(), userID, models.ActivitySample{
		UserID:         userID,
		Steps:          req.Steps,
		DistanceMeters: req.DistanceMeters,
		SampledAt:      req.SampledAt,
	})
	if err != nil {
		respondServiceError(w, err, "unable to record activity")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

const maxHistoryDays = 90

// ActivityHistory returns per-day totals, newest first.
func (h *Handler) ActivityHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	days := parseInt(r.URL.Query().Get("days"), 7)
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	rows, err := h.activity.History(r.Context(), userID, days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load activity")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
