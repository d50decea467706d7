package handlers

import (
	"net/http"

	"stepcoin/internal/auth"
	"stepcoin/internal/middleware"
	"stepcoin/internal/websocket"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := pagination(r, 20)
	txns, err := h.wallet.History(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, err, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, txns)
}

func (h *Handler) FitnessScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	score, err := h.wallet.FitnessScore(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "unable to compute fitness score")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"score": score})
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	row, err := h.wallet.SelfCheck(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "unable to run self-check")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":    row.UserID,
		"coins":      row.Coins,
		"ledger_sum": row.LedgerSum,
		"difference": row.Difference,
		"ok":         row.Difference == 0,
	})
}

// WSWallet upgrades to a websocket that opens with the caller's current
// wallet and then receives it again after every committed change.
func (h *Handler) WSWallet(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r, true)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	wallet, err := h.wallet.Balance(r.Context(), claims.UserID)
	if err != nil {
		respondServiceError(w, err, "unable to load wallet")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID, websocket.WalletUpdate{
		Type:         "snapshot",
		Coins:        wallet.Coins,
		TotalEarned:  wallet.TotalEarned,
		StepsCounted: wallet.StepsCounted,
		LastUpdated:  wallet.LastUpdated,
	})
}
