package hub

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/metrics"
	"github.com/Samane-mnejad/real-time-trading/cmd/server/internal/protocol"
	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// ClientConn is the hub's view of one live connection. Implementations
// must make SendJSON/SendBytes safe to call concurrently and non-fatal
// after the connection has closed.
type ClientConn interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// entry is the per-connection record: authenticated identity plus the
// current interest set. An empty interest set means the connection
// receives updates for all tickers.
type entry struct {
	identity  models.Identity
	interests map[string]bool
}

// Hub is the connection registry. It owns every connection entry and its
// interest set; the gateway only goes through Register/Unregister and
// HandleMessage.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[ClientConn]*entry
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[ClientConn]*entry),
	}
}

// Register adds an authenticated connection with an empty interest set.
// A non-nil snapshot is enqueued before the connection becomes visible
// to fan-out, so the snapshot always precedes the first price update.
func (h *Hub) Register(client ClientConn, identity models.Identity, snapshot interface{}) {
	h.mu.Lock()
	if snapshot != nil {
		client.SendJSON(snapshot)
	}
	h.clients[client] = &entry{identity: identity, interests: make(map[string]bool)}
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	h.logger.Info("Client registered",
		zap.String("client", client.ID()), zap.String("email", identity.Email))
}

// Unregister removes a connection. Idempotent; a connection deregistering
// mid-broadcast is tolerated by the broadcast path.
func (h *Hub) Unregister(client ClientConn) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Dec()
		h.logger.Info("Client deregistered", zap.String("client", client.ID()))
	}
	client.Close()
}

// HandleMessage decodes one inbound frame from a registered connection
// and applies it. Protocol errors never close the connection.
func (h *Hub) HandleMessage(client ClientConn, raw []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		client.SendJSON(protocol.ErrorMessage{Error: "Invalid message format"})
		return
	}

	switch msg.Type {
	case protocol.TypeSubscribe:
		if tickers, ok := h.updateInterests(client, msg.Tickers, true); ok {
			client.SendJSON(protocol.SubscriptionMessage{Type: protocol.TypeSubscriptionSuccess, Tickers: tickers})
		}
	case protocol.TypeUnsubscribe:
		if tickers, ok := h.updateInterests(client, msg.Tickers, false); ok {
			client.SendJSON(protocol.SubscriptionMessage{Type: protocol.TypeUnsubscriptionSuccess, Tickers: tickers})
		}
	default:
		client.SendJSON(protocol.ErrorMessage{Error: "Unknown message type"})
	}
}

// updateInterests adds or removes tickers and returns the full interest
// set afterwards. Duplicates and absent removals are no-ops. ok=false
// when the connection has already deregistered.
func (h *Hub) updateInterests(client ClientConn, tickers []string, add bool) ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.clients[client]
	if !ok {
		return nil, false
	}

	for _, t := range tickers {
		if add {
			e.interests[t] = true
		} else {
			delete(e.interests, t)
		}
	}

	out := make([]string, 0, len(e.interests))
	for t := range e.interests {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, true
}

// BroadcastPrice fans one update out to every connection whose interest
// set is empty or contains the ticker. A send to a connection that is
// closing is silently dropped; nothing here can affect other connections
// or the tick loop.
func (h *Hub) BroadcastPrice(price models.PricePoint) {
	payload, err := json.Marshal(protocol.UpdateMessage{Type: protocol.TypePriceUpdate, Data: price})
	if err != nil {
		h.logger.Error("Failed to encode price update", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client, e := range h.clients {
		if len(e.interests) == 0 || e.interests[price.Ticker] {
			client.SendBytes(payload)
		}
	}
	metrics.PriceUpdatesTotal.WithLabelValues(price.Ticker).Inc()
}

// Shutdown closes every live connection. Safe to call while connections
// are closing themselves.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]ClientConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[ClientConn]*entry)
	h.mu.Unlock()

	for _, c := range clients {
		metrics.ActiveConnections.Dec()
		c.Close()
	}
}
