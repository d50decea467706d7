package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"stepcoin/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps engine sentinels to client errors. Anything else
// is logged and reported as fallback.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "insufficient_funds")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInvalidSample):
		respondError(w, http.StatusBadRequest, "invalid_sample")
	case errors.Is(err, services.ErrInvalidChallenge):
		respondError(w, http.StatusBadRequest, "invalid_challenge")
	case errors.Is(err, services.ErrWalletNotFound):
		respondError(w, http.StatusNotFound, "wallet_not_found")
	case errors.Is(err, services.ErrChallengeNotFound):
		respondError(w, http.StatusNotFound, "challenge_not_found")
	case errors.Is(err, services.ErrNotJoined):
		respondError(w, http.StatusNotFound, "not_joined")
	case errors.Is(err, services.ErrAlreadyJoined):
		respondError(w, http.StatusConflict, "already_joined")
	case errors.Is(err, services.ErrChallengeAlreadyCompleted):
		respondError(w, http.StatusConflict, "challenge_completed")
	case errors.Is(err, services.ErrChallengeEnded):
		respondError(w, http.StatusConflict, "challenge_ended")
	default:
		slog.Error(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), defaultLimit)
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
