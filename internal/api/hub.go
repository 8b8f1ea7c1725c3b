package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub fans out state and presence events to every websocket subscriber
// of a game. Writes are serialized per connection.
type Hub struct {
	mu    sync.Mutex
	log   *slog.Logger
	games map[string]map[*subscriber]struct{}
}

type subscriber struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	userID string
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:   logger,
		games: make(map[string]map[*subscriber]struct{}),
	}
}

// wsEvent mirrors the client-side subscription payload.
type wsEvent struct {
	Type      string         `json:"type"`
	State     map[string]any `json:"state,omitempty"`
	Version   int64          `json:"version,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
	Presence  string         `json:"presence,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Nickname  string         `json:"nickname,omitempty"`
	OnlineAt  string         `json:"online_at,omitempty"`
}

func (h *Hub) add(gameID string, conn *websocket.Conn, userID string) *subscriber {
	sub := &subscriber{conn: conn, userID: userID}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*subscriber]struct{})
	}
	h.games[gameID][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(gameID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.games[gameID]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.games, gameID)
		}
	}
}

// Broadcast delivers an event to every subscriber of the game. Dead
// connections are dropped silently; the read loop handles cleanup.
func (h *Hub) Broadcast(gameID string, evt wsEvent) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.games[gameID]))
	for sub := range h.games[gameID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(evt); err != nil {
			h.log.Debug("websocket send failed", "game_id", gameID, "error", err)
		}
	}
}

func (s *subscriber) send(evt wsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(evt)
}
