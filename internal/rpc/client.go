// Package rpc is the client side of the shared-game surface: REST calls
// for game lifecycle and snapshots, a websocket for the live feed.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"railtally/internal/game"
)

var (
	// ErrGameNotFound and ErrBadJoinCode are user-actionable: a wrong
	// link or mistyped code. They must not be retried or swallowed.
	ErrGameNotFound = errors.New("game not found")
	ErrBadJoinCode  = errors.New("join code not recognized")
)

// Transient marks a failure worth retrying: network trouble or a 5xx.
type Transient struct {
	Err error
}

func (t Transient) Error() string { return t.Err.Error() }
func (t Transient) Unwrap() error { return t.Err }

// IsTransient reports whether err is a retryable transport failure rather
// than a hard rejection.
func IsTransient(err error) bool {
	var t Transient
	return errors.As(err, &t)
}

// Snapshot is one versioned state observation from the backend.
type Snapshot struct {
	State     *game.State
	Version   int64
	UpdatedAt time.Time
	UpdatedBy string
}

// GameInfo describes a created or joined game.
type GameInfo struct {
	GameID   string
	JoinCode string
	Snapshot Snapshot
}

// Member is a participant registered with a game.
type Member struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	JoinedAt string `json:"joined_at"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type snapshotPayload struct {
	State     map[string]any `json:"state"`
	Version   int64          `json:"version"`
	UpdatedAt string         `json:"updated_at"`
	UpdatedBy string         `json:"updated_by"`
}

func (p snapshotPayload) toSnapshot() Snapshot {
	updatedAt, _ := time.Parse(time.RFC3339, p.UpdatedAt)
	return Snapshot{
		State:     game.Normalize(p.State),
		Version:   p.Version,
		UpdatedAt: updatedAt,
		UpdatedBy: p.UpdatedBy,
	}
}

type gamePayload struct {
	GameID   string `json:"game_id"`
	JoinCode string `json:"join_code"`
	snapshotPayload
}

// CreateGame registers a fresh game and returns its id, human-entry join
// code, and the initial snapshot.
func (c *Client) CreateGame(ctx context.Context, userID, nickname string) (GameInfo, error) {
	var out gamePayload
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", map[string]any{
		"user_id":  userID,
		"nickname": nickname,
	}, &out)
	if err != nil {
		return GameInfo{}, err
	}
	return GameInfo{GameID: out.GameID, JoinCode: out.JoinCode, Snapshot: out.toSnapshot()}, nil
}

// JoinGame resolves a join code into a game and its current snapshot.
func (c *Client) JoinGame(ctx context.Context, joinCode, userID, nickname string) (GameInfo, error) {
	var out gamePayload
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/join", map[string]any{
		"join_code": joinCode,
		"user_id":   userID,
		"nickname":  nickname,
	}, &out)
	if err != nil {
		return GameInfo{}, err
	}
	return GameInfo{GameID: out.GameID, JoinCode: out.JoinCode, Snapshot: out.toSnapshot()}, nil
}

// LoadState fetches the current snapshot with last-writer metadata.
func (c *Client) LoadState(ctx context.Context, gameID string) (Snapshot, error) {
	var out snapshotPayload
	path := "/v1/games/" + url.PathEscape(gameID) + "/state"
	if err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Snapshot{}, err
	}
	return out.toSnapshot(), nil
}

// SaveState uploads a new snapshot and returns the bumped version.
func (c *Client) SaveState(ctx context.Context, gameID, userID string, state *game.State) (Snapshot, error) {
	var out snapshotPayload
	path := "/v1/games/" + url.PathEscape(gameID) + "/state"
	err := c.jsonRequest(ctx, http.MethodPut, path, map[string]any{
		"user_id": userID,
		"state":   state,
	}, &out)
	if err != nil {
		return Snapshot{}, err
	}
	return out.toSnapshot(), nil
}

// ListMembers returns everyone who has joined the game.
func (c *Client) ListMembers(ctx context.Context, gameID string) ([]Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}
	path := "/v1/games/" + url.PathEscape(gameID) + "/members"
	if err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Transient{Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			if strings.Contains(msg, "join code") {
				return fmt.Errorf("%w: %s", ErrBadJoinCode, msg)
			}
			return fmt.Errorf("%w: %s", ErrGameNotFound, msg)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, msg)
		default:
			return Transient{Err: fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, msg)}
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Transient{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 2048))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
