// Package dashboard serves the clinician view: the latest analysis and a websocket
// stream that pushes each newly inserted analysis to every connected browser.
package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-intake/internal/gateway"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// EventAnalysisInserted is the only event type pushed today.
const EventAnalysisInserted = "analysis.inserted"

// Event is one frame sent to dashboard clients.
type Event struct {
	Type      string                  `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Data      *gateway.LatestAnalysis `json:"data"`
}

type client struct {
	id   string
	send chan []byte
}

// Hub tracks connected dashboard clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	buffer  int
	metrics *metrics.DashboardMetrics
	logger  *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(m *metrics.DashboardMetrics, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  32,
		metrics: m,
		logger:  logger,
	}
}

func (h *Hub) register() *client {
	c := &client{id: uuid.NewString(), send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientConnected()
	h.logger.Debug("dashboard client connected", "client_id", c.id)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.ClientDisconnected()
	h.logger.Debug("dashboard client disconnected", "client_id", c.id)
}

// Broadcast sends event to every client. Clients whose buffer is full miss the frame.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal dashboard event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.metrics.ObserveBroadcast(false)
		default:
			h.metrics.ObserveBroadcast(true)
			h.logger.Warn("dashboard client too slow, frame dropped", "client_id", c.id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.ClientDisconnected()
	}
}
