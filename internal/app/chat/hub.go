package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"dmchat/internal/pkg/logx"
)

// Hub is the connection registry and event dispatcher. It owns the map from
// user id to that user's set of live channels; the map is never handed out.
// All registry state is ephemeral and rebuilt from empty on restart.
type Hub struct {
	// mu protects clients against concurrent connect, disconnect, and emit.
	mu sync.RWMutex

	clients map[string]map[*Client]struct{}

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// Connect registers a channel that has completed its handshake.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}

	h.logger.Info().Str("user_id", c.UserID).Int("channels", len(set)).Msg("Channel connected")
}

// Disconnect removes a channel, dropping the user's registry entry entirely
// once its channel set is empty. Unknown channels are ignored.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}

	if _, registered := set[c]; !registered {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}

	h.logger.Info().Str("user_id", c.UserID).Int("channels", len(set)).Msg("Channel disconnected")
}

// Emit delivers the event to every live channel of the user, each
// independently: failure on one channel never blocks or aborts delivery to
// another. A channel whose enqueue fails is treated as dead and disconnected.
// With zero live channels the event is dropped; there is no queue, no retry,
// and no replay on reconnect.
func (h *Hub) Emit(userID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", ev.Type).Msg("Failed to marshal event for fan-out")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dead []*Client
	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		h.logger.Warn().Str("user_id", userID).Str("event_type", ev.Type).Msg("Channel send failed, pruning dead channel")
		h.Disconnect(c)
		c.Close()
	}
}

// ChannelCount reports how many live channels a user currently has.
func (h *Hub) ChannelCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

// Shutdown closes every registered channel and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.clients {
		for c := range set {
			c.Close()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})

	h.logger.Info().Msg("Hub shutdown complete")
}
