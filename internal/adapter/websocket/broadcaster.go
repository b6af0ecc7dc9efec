package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/plantpulse/internal/adapter/metrics"
	"github.com/pscheid92/plantpulse/internal/domain"
)

// Hub owns the live connections and fans envelopes out to them. Each
// envelope is encoded once per broadcast.
type Hub struct {
	registry *Registry
	metrics  *metrics.WebSocketMetrics
}

func NewHub(wsMetrics *metrics.WebSocketMetrics) *Hub {
	return &Hub{registry: NewRegistry(), metrics: wsMetrics}
}

// Register makes c addressable by ToConn. Group and actor broadcasts reach
// it only after Join.
func (h *Hub) Register(c *Conn) {
	if h.registry.Add(c) && h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
}

func (h *Hub) Join(c *Conn) {
	h.registry.Join(c)
	slog.Debug("Connection joined groups", "conn_id", c.id, "actor_id", c.actor.ID, "groups", len(c.groups))
}

// Unregister removes c and stops its writer. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.forget(c)
	c.stop()
}

func (h *Hub) forget(c *Conn) {
	if h.registry.Leave(c) && h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

func (h *Hub) ToGroup(key domain.GroupKey, env domain.Envelope) {
	members := h.registry.Members(key)
	if len(members) == 0 {
		return
	}
	if data, ok := encode(env); ok {
		h.deliver(members, data)
	}
}

// ToGroups delivers env once to every connection in any of keys.
func (h *Hub) ToGroups(keys []domain.GroupKey, env domain.Envelope) {
	seen := make(map[string]struct{})
	var targets []*Conn
	for _, key := range keys {
		for _, c := range h.registry.Members(key) {
			if _, dup := seen[c.id]; dup {
				continue
			}
			seen[c.id] = struct{}{}
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return
	}
	if data, ok := encode(env); ok {
		h.deliver(targets, data)
	}
}

// ToActor reaches every device the actor has connected.
func (h *Hub) ToActor(actorID string, env domain.Envelope) {
	h.ToGroup(domain.UserGroup(actorID), env)
}

// ToConn reports whether the connection was still registered.
func (h *Hub) ToConn(connID string, env domain.Envelope) bool {
	c, ok := h.registry.Conn(connID)
	if !ok {
		return false
	}
	if data, ok := encode(env); ok {
		h.deliver([]*Conn{c}, data)
	}
	return true
}

func (h *Hub) deliver(targets []*Conn, data []byte) {
	for _, c := range targets {
		if c.enqueue(data) {
			if h.metrics != nil {
				h.metrics.MessagesSent.Inc()
			}
			continue
		}

		slog.Warn("Evicting slow client", "conn_id", c.id, "actor_id", c.actor.ID)
		if h.metrics != nil {
			h.metrics.SlowClientEvictions.Inc()
		}
		h.forget(c)
		go c.closeGraceful(websocket.CloseTryAgainLater, "send queue full")
	}
}

func (h *Hub) Count() int {
	return h.registry.Count()
}

func (h *Hub) CountActor(actorID string) int {
	return len(h.registry.Members(domain.UserGroup(actorID)))
}

// DisconnectActor closes every connection of actorID after flushing what is
// already queued to them. It returns how many were closed.
func (h *Hub) DisconnectActor(actorID, reason string) int {
	conns := h.registry.Members(domain.UserGroup(actorID))
	h.closeAll(conns, websocket.ClosePolicyViolation, reason)
	return len(conns)
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll(reason string) {
	conns := h.registry.All()
	h.closeAll(conns, websocket.CloseGoingAway, reason)
	slog.Info("Closed all connections", "count", len(conns))
}

func (h *Hub) closeAll(conns []*Conn, code int, reason string) {
	var wg sync.WaitGroup
	for _, c := range conns {
		h.forget(c)
		wg.Go(func() { c.closeGraceful(code, reason) })
	}
	wg.Wait()
}

func encode(env domain.Envelope) ([]byte, bool) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to encode envelope", "event", env.Event, "error", err)
		return nil, false
	}
	return data, true
}
