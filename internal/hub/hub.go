// ABOUTME: HTTP handler that upgrades /ws requests into tracked clients
// ABOUTME: Binds connection lifecycle to the presence registry

package hub

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/taskhaven/chat-gateway/internal/presence"
)

// Hub upgrades websocket requests and wires each resulting client into
// the presence registry for its lifetime.
type Hub struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Hub backed by the given registry.
func New(registry *presence.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary frontend origins;
			// access control happens at the API layer, not the socket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "hub"),
	}
}

// ServeHTTP handles GET /ws?user_id=<id>.
//
// The upgrade always succeeds for well-formed requests. A missing or
// unusable user_id (including the literal "undefined" that uninitialized
// frontends send) leaves the connection anonymous: it receives presence
// broadcasts but is never tracked as online.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	userID := normalizeUserID(r.URL.Query().Get("user_id"))
	client := newClient(userID, conn, h.logger)

	go client.writePump()

	broadcasted := false
	if userID == "" {
		h.registry.RegisterAnonymous(client)
		h.logger.Debug("anonymous websocket connection", "remote", r.RemoteAddr)
	} else {
		broadcasted = h.registry.Register(userID, client)
		h.logger.Debug("websocket connected", "user_id", userID)
	}

	// A first connection already saw the current snapshot through the
	// registration broadcast; everyone else gets one explicitly. Pushing
	// both would leave the client one stale presence event ahead.
	if !broadcasted {
		if err := client.PushPresence(h.registry.Snapshot()); err != nil {
			h.logger.Debug("initial presence push failed", "error", err)
		}
	}

	go client.readPump(func() {
		if userID == "" {
			h.registry.UnregisterAnonymous(client)
		} else {
			h.registry.Unregister(userID, client)
			h.logger.Debug("websocket disconnected", "user_id", userID)
		}
	})
}

// normalizeUserID rejects identifiers that cannot name a user.
func normalizeUserID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "undefined" || id == "null" {
		return ""
	}
	return id
}
