package handlers

import (
	"net/http"
	"strings"

	"stepcoin/internal/config"
	"stepcoin/internal/db"
	"stepcoin/internal/middleware"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner   db.TxRunner
	cfg        config.Config
	users      UserStore
	wallets    WalletStore
	ledger     LedgerStore
	activity   ActivityStore
	admin      AdminStore
	audit      AuditStore
	wallet     WalletService
	accrual    AccrualService
	challenges ChallengeService
	hub        *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, wallets WalletStore, ledger LedgerStore, activity ActivityStore, admin AdminStore, audit AuditStore, wallet WalletService, accrual AccrualService, challenges ChallengeService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:   txRunner,
		cfg:        cfg,
		users:      users,
		wallets:    wallets,
		ledger:     ledger,
		activity:   activity,
		admin:      admin,
		audit:      audit,
		wallet:     wallet,
		accrual:    accrual,
		challenges: challenges,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authenticated := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})
	router.Route("/wallet", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.GetWallet)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/fitness-score", h.FitnessScore)
		r.Get("/self-check", h.SelfCheck)
	})
	router.Route("/activity", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/samples", h.PushSample)
		r.Get("/history", h.ActivityHistory)
	})
	router.Route("/challenges", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.ListChallenges)
		r.Get("/mine", h.MyChallenges)
		r.Post("/tick", h.Tick)
		r.Post("/{id}/join", h.JoinChallenge)
		r.Post("/{id}/leave", h.LeaveChallenge)
	})
	router.Get("/ws/wallet", h.WSWallet)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.With(middleware.RequireAdmin(h.admin, store.RoleManageChallenges)).Post("/challenges", h.SeedChallenges)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewUsers)).Get("/users", h.AdminListUsers)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewLedger)).Get("/reconcile", h.Reconcile)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/roles/grant", h.GrantRole)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/promote", h.PromoteAdmin)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func allowedOrigins(raw string) []string {
	origins := make([]string, 0, 1)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
