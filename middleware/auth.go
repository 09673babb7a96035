// Package middleware holds the HTTP wrappers shared by the daemon's
// surfaces.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// Auth requires a bearer token on every path except the health check and
// the WebSocket endpoint, which authenticates with its first RPC call.
//
// Image requests may pass the token as ?token= instead, since browsers
// cannot set headers on <img> loads.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}
			// Preflight requests never carry credentials.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got, ok := credential(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if got == "" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("rejected request with invalid token", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented token. ok is false when none was
// presented; an empty token with ok set means the header was malformed.
func credential(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.HasPrefix(r.URL.Path, "/api/images/") {
			if q := r.URL.Query().Get("token"); q != "" {
				return q, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", true
	}
	return parts[1], true
}
