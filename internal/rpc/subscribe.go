package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one message from the live feed. StateChange events carry a
// snapshot; presence events report membership activity.
type Event struct {
	Type      string         `json:"type"` // "state" or "presence"
	State     map[string]any `json:"state,omitempty"`
	Version   int64          `json:"version,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
	Presence  string         `json:"presence,omitempty"` // "join", "leave", "sync"
	UserID    string         `json:"user_id,omitempty"`
	Nickname  string         `json:"nickname,omitempty"`
	OnlineAt  string         `json:"online_at,omitempty"`
}

// Subscription is a live game feed. Close tears down the socket and stops
// the read loop; it is safe to call more than once.
type Subscription struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Subscribe opens the websocket feed for a game and delivers every event
// to onEvent from a single goroutine. The feed ends when Close is called,
// ctx is cancelled, or the server drops the connection.
func (c *Client) Subscribe(ctx context.Context, gameID, userID, nickname string, onEvent func(Event)) (*Subscription, error) {
	wsBase := strings.Replace(c.BaseURL, "http", "ws", 1)
	endpoint := fmt.Sprintf("%s/v1/games/%s/ws?user_id=%s&nickname=%s",
		wsBase, url.PathEscape(gameID), url.QueryEscape(userID), url.QueryEscape(nickname))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		return nil, Transient{Err: fmt.Errorf("subscribe %s: %w", gameID, err)}
	}
	sub := &Subscription{conn: conn, done: make(chan struct{})}

	go func() {
		<-ctx.Done()
		sub.closeOnce.Do(func() { _ = conn.Close() })
	}()

	go func() {
		defer close(sub.done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var evt Event
			if err := json.Unmarshal(raw, &evt); err != nil {
				continue
			}
			onEvent(evt)
		}
	}()
	return sub, nil
}
