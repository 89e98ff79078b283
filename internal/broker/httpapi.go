package broker

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rerun-io/tracepipe/internal/api"
)

// newUpgrader builds the broker's WebSocket upgrader. No tenant/origin
// allowlist is enforced here: the broker has no authentication concept,
// and a local-development tracing tool is not expected to be exposed to
// untrusted browser origins.
func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// WebSocketHandler upgrades a connection and registers it with the broker.
type WebSocketHandler struct {
	broker   *Broker
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(b *Broker) *WebSocketHandler {
	return &WebSocketHandler{broker: b, upgrader: newUpgrader()}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := NewClient(h.broker, conn)
	go c.WritePump()
	go c.ReadPump()
}

// HealthHandler reports broker liveness: a trivial 200 with a small JSON
// body.
type HealthHandler struct {
	broker *Broker
}

func NewHealthHandler(b *Broker) *HealthHandler {
	return &HealthHandler{broker: b}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"connected_clients": h.broker.connectedClients(),
	})
}

// DebugTopicsHandler exposes a read-only JSON snapshot of known topics and
// their backlog lengths. It has no effect on the wire protocol and exists
// purely for local troubleshooting.
type DebugTopicsHandler struct {
	broker *Broker
}

func NewDebugTopicsHandler(b *Broker) *DebugTopicsHandler {
	return &DebugTopicsHandler{broker: b}
}

func (h *DebugTopicsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.broker.debugTopics())
}

// MetricsHandler returns the standard Prometheus exposition handler backed
// by the default global registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsHandlerFor returns a Prometheus exposition handler for a specific
// registry, for callers (e.g. cmd/broker) that construct their own registry
// instead of using the global default.
func MetricsHandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
