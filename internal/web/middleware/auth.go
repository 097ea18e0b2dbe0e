package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/DataClean/internal/core"
	"github.com/JonMunkholm/DataClean/internal/logging"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (core.User, error)
}

// BearerAuth returns middleware that requires "Authorization: Bearer <token>".
// The resolved user is stored with core.ContextWithUser and its id is added
// to the request logger. Requests without a valid token get 401.
func BearerAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logging.FromContext(r.Context()).Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
				)
				unauthorized(w, "Not authenticated")
				return
			}

			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: rejected token",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err,
				)
				unauthorized(w, "Could not validate credentials")
				return
			}

			ctx := core.ContextWithUser(r.Context(), user)
			ctx = logging.ContextWithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"message": msg,
		"action":  "Log in again to get a new access token",
		"code":    "AUTH002",
	})
}
