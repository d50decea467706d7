package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAdmin admits admins holding role. Super admins pass every check and
// an empty role admits any admin. Must run after Auth.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			isAdmin, isSuper, err := adminStore.IsAdmin(r.Context(), userID)
			if err != nil {
				slog.Error("admin lookup failed", "user_id", userID, "error", err)
				deny(w, http.StatusInternalServerError, "unable_to_verify_admin")
				return
			}
			if !isAdmin {
				deny(w, http.StatusForbidden, "admin_required")
				return
			}
			if isSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			hasRole, err := adminStore.HasRole(r.Context(), userID, role)
			if err != nil {
				slog.Error("role lookup failed", "user_id", userID, "role", role, "error", err)
				deny(w, http.StatusInternalServerError, "unable_to_verify_role")
				return
			}
			if !hasRole {
				slog.Warn("admin missing role", "user_id", userID, "role", role, "path", r.URL.Path)
				deny(w, http.StatusForbidden, "missing_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
