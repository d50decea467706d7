package handlers

import (
	"net/http"

	"stepcoin/internal/middleware"
	"stepcoin/internal/validator"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.challenges.Catalog(r.Context())
	if err != nil {
		respondServiceError(w, err, "unable to load challenges")
		return
	}
	respondJSON(w, http.StatusOK, catalog)
}

func (h *Handler) MyChallenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rows, err := h.challenges.UserChallenges(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "unable to load challenges")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	challengeID := chi.URLParam(r, "id")
	if err := validator.ValidateChallengeID(challengeID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	uc, err := h.challenges.Join(r.Context(), userID, challengeID)
	if err != nil {
		respondServiceError(w, err, "unable to join challenge")
		return
	}
	respondJSON(w, http.StatusCreated, uc)
}

func (h *Handler) LeaveChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	challengeID := chi.URLParam(r, "id")
	if err := validator.ValidateChallengeID(challengeID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.challenges.Leave(r.Context(), userID, challengeID); err != nil {
		respondServiceError(w, err, "unable to leave challenge")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.challenges.Tick(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "unable to update challenges")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
