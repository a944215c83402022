package api

import "net/http"

// RegisterRoutes wires the gateway onto the mux. Every route except
// /health, /metrics, and the websocket stream goes through the
// middleware chain: API-key auth, then per-address rate limiting, then
// the request timeout.
func RegisterRoutes(mux *http.ServeMux, gateway *Gateway) {
	guarded := func(handler apiHandler) http.HandlerFunc {
		chain := timeoutMiddleware(gateway.RequestTimeout, handler)
		chain = rateLimitMiddleware(gateway.System.Limiter(), gateway.RateLimitMax, gateway.RateLimitWindow, chain)
		chain = authMiddleware(gateway.APIKey, chain)
		return securityHeadersHandler(cacheControlNoStore, loggingMiddleware(gateway.Logger, jsonErrorMiddleware(chain)))
	}

	mux.HandleFunc("/webhook/", guarded(gateway.handleWebhook))
	mux.HandleFunc("/api/trigger/", guarded(gateway.handleAPITrigger))
	mux.HandleFunc("/api/triggers", guarded(gateway.handleTriggers))
	mux.HandleFunc("/api/triggers/", guarded(gateway.handleTrigger))
	mux.HandleFunc("/api/events", guarded(gateway.handleEvents))
	mux.HandleFunc("/api/workflows/", guarded(gateway.handleManualTrigger))
	mux.HandleFunc("/ws/events", securityHeadersHandler(cacheControlNoStore, gateway.handleEventsStream))
	mux.HandleFunc("/health", securityHeadersHandler(cacheControlNoStore, gateway.handleHealth))
	mux.HandleFunc("/metrics", securityHeadersHandler(cacheControlNoStore, gateway.handleMetrics))
}
