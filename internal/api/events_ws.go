package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  wsReadBufferSize,
	WriteBufferSize: wsWriteBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsStream serves GET /ws/events: a live feed of
// trigger_processed notifications. Browsers cannot set X-API-Key on a
// websocket handshake, so an api_key query parameter is accepted too.
func (gateway *Gateway) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	if !validateStreamKey(r, gateway.APIKey) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid api key", Code: "unauthorized"})
		return
	}

	bus := gateway.System.Processor().Notifications()
	if bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "notifications unavailable", Code: "service_unavailable"})
		return
	}

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		gateway.logWarn("events stream upgrade failed", map[string]string{
			"error": err.Error(),
		})
		return
	}
	defer func() { _ = conn.Close() }()

	notifications, cancel := bus.Subscribe()
	defer cancel()

	// Drain the read side so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notification, ok := <-notifications:
			if !ok {
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(notification); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func validateStreamKey(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return true
	}
	provided := r.Header.Get("X-API-Key")
	if provided == "" {
		provided = r.URL.Query().Get("api_key")
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) == 1
}

func (gateway *Gateway) logWarn(message string, fields map[string]string) {
	if gateway == nil || gateway.Logger == nil {
		return
	}
	gateway.Logger.Warn(message, fields)
}
