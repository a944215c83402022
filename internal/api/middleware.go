package api

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"sluice/internal/logging"
	"sluice/internal/ratelimit"
)

type apiError struct {
	Status  int
	Message string
	Code    string
}

type apiHandler func(http.ResponseWriter, *http.Request) *apiError

const cacheControlNoStore = "no-store, must-revalidate"

func setSecurityHeaders(w http.ResponseWriter, cacheControl string) {
	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	if cacheControl != "" {
		headers.Set("Cache-Control", cacheControl)
	}
}

func securityHeadersHandler(cacheControl string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, cacheControl)
		next(w, r)
	}
}

// authMiddleware checks X-API-Key against the process-wide key with a
// constant-time compare. An empty configured key disables the check.
func authMiddleware(apiKey string, next apiHandler) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		if !validateAPIKey(r, apiKey) {
			return &apiError{Status: http.StatusUnauthorized, Message: "invalid api key"}
		}
		return next(w, r)
	}
}

func validateAPIKey(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return true
	}
	provided := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) == 1
}

// rateLimitMiddleware admits by caller network address. A denied call
// has no side effects beyond the 429.
func rateLimitMiddleware(limiter *ratelimit.Limiter, maxRequests int, window time.Duration, next apiHandler) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		if limiter != nil && maxRequests > 0 {
			if !limiter.Allow(callerAddress(r), maxRequests, window) {
				return &apiError{Status: http.StatusTooManyRequests, Message: "rate limit exceeded"}
			}
		}
		return next(w, r)
	}
}

func callerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// timeoutMiddleware bounds each request so a slow dispatcher call cannot
// exhaust the handler pool.
func timeoutMiddleware(timeout time.Duration, next apiHandler) apiHandler {
	if timeout <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		return next(w, r.WithContext(ctx))
	}
}

func jsonErrorMiddleware(next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			writeJSONError(w, err)
		}
	}
}

func loggingMiddleware(logger *logging.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("gateway request", map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			})
		}
		next(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) *apiError {
	w.Header().Set("Allow", allow)
	return &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
}
