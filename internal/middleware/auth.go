package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"stepcoin/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// BearerToken extracts the token from the Authorization header. When
// allowQuery is set, a ?token= parameter is accepted as well, since browsers
// cannot set headers on websocket upgrades.
func BearerToken(r *http.Request, allowQuery bool) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// Auth rejects requests without a valid access token and stores the caller's
// user id in the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				deny(w, http.StatusUnauthorized, "missing_token")
				return
			}
			token := BearerToken(r, false)
			if token == "" {
				deny(w, http.StatusUnauthorized, "invalid_authorization_header")
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
