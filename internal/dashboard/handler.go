package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	"github.com/wolfman30/clinic-intake/internal/gateway"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Source is the subset of the gateway the dashboard reads from.
type Source interface {
	FetchLatestAnalysis(ctx context.Context) *gateway.LatestAnalysis
	Expand(ctx context.Context, analysis analyses.Analysis) *gateway.LatestAnalysis
	SubscribeToAnalyses(ctx context.Context, onInsert func(analyses.Analysis)) (*gateway.Subscription, error)
}

// Handler serves the dashboard endpoints.
type Handler struct {
	source   Source
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler creates the dashboard handler. An empty allowedOrigins list accepts any origin.
func NewHandler(source Source, hub *Hub, allowedOrigins []string, logger *logging.Logger) *Handler {
	if source == nil || hub == nil {
		panic("dashboard: source and hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		source: source,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	allow := map[string]struct{}{}
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allow[o] = struct{}{}
		}
	}
	if len(allow) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
}

// Latest handles GET /api/dashboard/latest. 204 means there is nothing to show.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	latest := h.source.FetchLatestAnalysis(r.Context())
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(latest)
}

// Stream handles GET /api/dashboard/stream by upgrading to a websocket.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("dashboard websocket upgrade failed", "error", err)
		return
	}
	c := h.hub.register()
	go h.writePump(c, ws)
	go h.readPump(c, ws)
}

// readPump only drains control frames; clients never send data.
func (h *Handler) readPump(c *client, ws *websocket.Conn) {
	defer func() {
		h.hub.unregister(c)
		ws.Close()
	}()
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(c *client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Relay subscribes to inserted analyses and broadcasts each, expanded with its patient
// and readings, to the hub. The caller must Close the returned subscription.
func (h *Handler) Relay(ctx context.Context) (*gateway.Subscription, error) {
	return h.source.SubscribeToAnalyses(ctx, func(a analyses.Analysis) {
		latest := h.source.Expand(ctx, a)
		if latest == nil {
			h.logger.Warn("dropping analysis without patient", "analysis_id", a.ID)
			return
		}
		h.hub.Broadcast(Event{Type: EventAnalysisInserted, Timestamp: time.Now().UTC(), Data: latest})
	})
}
