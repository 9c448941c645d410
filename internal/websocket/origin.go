package websocket

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
)

// NewSecureUpgrader creates a WebSocket upgrader that only accepts the given
// origins. Requests without an Origin header are same-origin and allowed.
func NewSecureUpgrader(allowedOrigins []string, secLogger *logger.SecurityLogger) websocket.Upgrader {
	filtered := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			filtered = append(filtered, origin)
		}
	}

	// Default to localhost if no origins configured
	if len(filtered) == 0 {
		filtered = []string{"http://localhost:3000"}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			for _, allowed := range filtered {
				if allowed == "*" || allowed == origin {
					return true
				}
			}

			if secLogger != nil {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				secLogger.InvalidOrigin(ip, origin)
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
