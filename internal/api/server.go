// Package api exposes the shared-game HTTP and websocket surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"railtally/internal/config"
	"railtally/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	games    *session.Service
	hub      *Hub
	upgrader websocket.Upgrader
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, games *session.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		games: games,
		hub:   NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/games", s.handleCreateGame)
		r.Post("/games/join", s.handleJoinGame)
		r.Get("/games/{id}/state", s.handleLoadState)
		r.Put("/games/{id}/state", s.handleSaveState)
		r.Get("/games/{id}/members", s.handleListMembers)
		r.Get("/games/{id}/ws", s.handleSubscribe)
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	info, err := s.games.CreateGame(r.Context(), req.UserID, req.Nickname)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gameResponse(info))
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JoinCode string `json:"join_code"`
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	info, err := s.games.JoinGame(r.Context(), req.JoinCode, req.UserID, req.Nickname)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.hub.Broadcast(info.GameID, wsEvent{
		Type:     "presence",
		Presence: "join",
		UserID:   req.UserID,
		Nickname: req.Nickname,
		OnlineAt: time.Now().UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, gameResponse(info))
}

func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.games.LoadState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	var req struct {
		UserID string `json:"user_id"`
		State  any    `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.games.SaveState(r.Context(), gameID, req.UserID, req.State)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	evt := wsEvent{
		Type:      "state",
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt.UTC().Format(time.RFC3339),
		UpdatedBy: snap.UpdatedBy,
	}
	if raw, err := json.Marshal(snap.State); err == nil {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			evt.State = m
		}
	}
	s.hub.Broadcast(gameID, evt)

	writeJSON(w, http.StatusOK, snapshotResponse(snap))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.games.ListMembers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		out = append(out, map[string]any{
			"user_id":   m.UserID,
			"nickname":  m.Nickname,
			"joined_at": m.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

// handleSubscribe upgrades to a websocket that streams state and
// presence events until the client goes away.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := s.games.LoadState(r.Context(), gameID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "game_id", gameID, "error", err)
		return
	}

	// The request context carries the router timeout, and the socket
	// outlives it. Presence writes get their own context.
	ctx := context.Background()
	if err := s.games.TouchPresence(ctx, gameID, userID, nickname); err != nil {
		s.log.Warn("touch presence failed", "game_id", gameID, "error", err)
	}
	sub := s.hub.add(gameID, conn, userID)
	s.hub.Broadcast(gameID, wsEvent{
		Type:     "presence",
		Presence: "sync",
		UserID:   userID,
		Nickname: nickname,
		OnlineAt: time.Now().UTC().Format(time.RFC3339),
	})

	// Read loop exists only to observe disconnects; clients never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.remove(gameID, sub)
	conn.Close()
	if err := s.games.ClearPresence(ctx, gameID, userID); err != nil {
		s.log.Warn("clear presence failed", "game_id", gameID, "error", err)
	}
	s.hub.Broadcast(gameID, wsEvent{
		Type:     "presence",
		Presence: "leave",
		UserID:   userID,
		Nickname: nickname,
	})
}

func gameResponse(info session.GameInfo) map[string]any {
	resp := snapshotResponse(info.Snapshot)
	resp["game_id"] = info.GameID
	resp["join_code"] = info.JoinCode
	return resp
}

func snapshotResponse(snap session.Snapshot) map[string]any {
	return map[string]any{
		"state":      snap.State,
		"version":    snap.Version,
		"updated_at": snap.UpdatedAt.UTC().Format(time.RFC3339),
		"updated_by": snap.UpdatedBy,
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBadJoinCode):
		writeError(w, http.StatusNotFound, "join code not recognized")
	case errors.Is(err, session.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
