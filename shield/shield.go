// Package shield provides HTTP security middleware for the exploration API:
// security headers, per-endpoint rate limiting, request body limits, request
// ids, and bearer-password authentication.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(rl, cfg.AuthHash) {
//	    r.Use(mw)
//	}
//
// Or compose individually:
//
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(1 << 20))
//	r.Use(shield.RequestID(nil))
package shield

import (
	"encoding/json"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// RequestIDKey is the context key for the request id.
	RequestIDKey contextKey = "shield_request_id"
)

// DefaultStack returns the standard middleware stack for the exploration API.
// Rate limiting applies when rl is non-nil; bearer auth applies when authHash
// is non-empty.
func DefaultStack(rl *RateLimiter, authHash string) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(1 << 20),
		RequestID(nil),
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	if authHash != "" {
		stack = append(stack, BearerAuth(authHash))
	}
	return stack
}

func jsonError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
