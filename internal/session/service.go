// Package session is the server-side store for shared games: versioned
// state snapshots, membership, and presence, all backed by Postgres.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"railtally/internal/game"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrBadJoinCode  = errors.New("join code not recognized")
)

// Join codes skip ambiguous characters (0/O, 1/I/L) so they survive being
// read out loud at the table.
const joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const joinCodeLength = 6

type Service struct {
	db   *pgxpool.Pool
	log  *slog.Logger
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:   db,
		log:  logger,
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// Snapshot is a versioned state observation with last-writer metadata.
type Snapshot struct {
	State     *game.State
	Version   int64
	UpdatedAt time.Time
	UpdatedBy string
}

type GameInfo struct {
	GameID   string
	JoinCode string
	Snapshot Snapshot
}

type Member struct {
	UserID   string
	Nickname string
	JoinedAt time.Time
}

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS games (
			id          text PRIMARY KEY,
			join_code   text NOT NULL UNIQUE,
			state       jsonb NOT NULL,
			version     bigint NOT NULL DEFAULT 1,
			updated_at  timestamptz NOT NULL DEFAULT now(),
			updated_by  text NOT NULL DEFAULT '',
			created_at  timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS game_members (
			game_id    text NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			user_id    text NOT NULL,
			nickname   text NOT NULL,
			joined_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (game_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS game_presence (
			game_id    text NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			user_id    text NOT NULL,
			nickname   text NOT NULL,
			online_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (game_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Service) newJoinCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, joinCodeLength)
	for i := range buf {
		buf[i] = joinCodeAlphabet[s.rand.Intn(len(joinCodeAlphabet))]
	}
	return string(buf)
}

// CreateGame registers a fresh game seeded with the base state and adds
// the creator as its first member.
func (s *Service) CreateGame(ctx context.Context, userID, nickname string) (GameInfo, error) {
	initial := game.NewState()
	stateRaw, err := json.Marshal(initial)
	if err != nil {
		return GameInfo{}, err
	}
	gameID := uuid.NewString()

	var (
		joinCode  string
		updatedAt time.Time
	)
	for attempt := 0; attempt < 5; attempt++ {
		joinCode = s.newJoinCode()
		err = s.db.QueryRow(ctx, `
			INSERT INTO games (id, join_code, state, version, updated_by)
			VALUES ($1, $2, $3, 1, $4)
			RETURNING updated_at
		`, gameID, joinCode, stateRaw, userID).Scan(&updatedAt)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue // join code collision, roll a new one
		}
		return GameInfo{}, fmt.Errorf("create game: %w", err)
	}
	if err != nil {
		return GameInfo{}, fmt.Errorf("create game: %w", err)
	}

	if err := s.upsertMember(ctx, gameID, userID, nickname); err != nil {
		return GameInfo{}, err
	}
	s.log.Info("game created", "game_id", gameID, "join_code", joinCode)
	return GameInfo{
		GameID:   gameID,
		JoinCode: joinCode,
		Snapshot: Snapshot{State: initial, Version: 1, UpdatedAt: updatedAt, UpdatedBy: userID},
	}, nil
}

// NormalizeJoinCode folds a user-entered code to the stored form.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// JoinGame resolves a join code, registers the member, and returns the
// current snapshot. A wrong code is a hard failure, not a transient one.
func (s *Service) JoinGame(ctx context.Context, joinCode, userID, nickname string) (GameInfo, error) {
	joinCode = NormalizeJoinCode(joinCode)
	var (
		gameID string
		snap   Snapshot
	)
	var stateRaw []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, state, version, updated_at, updated_by
		FROM games
		WHERE join_code = $1
	`, joinCode).Scan(&gameID, &stateRaw, &snap.Version, &snap.UpdatedAt, &snap.UpdatedBy)
	if err == pgx.ErrNoRows {
		return GameInfo{}, fmt.Errorf("%w: %s", ErrBadJoinCode, joinCode)
	}
	if err != nil {
		return GameInfo{}, fmt.Errorf("join game: %w", err)
	}
	snap.State = game.NormalizeJSON(stateRaw)

	if err := s.upsertMember(ctx, gameID, userID, nickname); err != nil {
		return GameInfo{}, err
	}
	return GameInfo{GameID: gameID, JoinCode: joinCode, Snapshot: snap}, nil
}

// LoadState returns the current snapshot for a game.
func (s *Service) LoadState(ctx context.Context, gameID string) (Snapshot, error) {
	var (
		snap     Snapshot
		stateRaw []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT state, version, updated_at, updated_by
		FROM games
		WHERE id = $1
	`, gameID).Scan(&stateRaw, &snap.Version, &snap.UpdatedAt, &snap.UpdatedBy)
	if err == pgx.ErrNoRows {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load state: %w", err)
	}
	snap.State = game.NormalizeJSON(stateRaw)
	return snap, nil
}

// SaveState stores a new snapshot, bumping the version. The stored state
// is normalized first so a reader never sees a partially-shaped payload.
func (s *Service) SaveState(ctx context.Context, gameID, userID string, payload any) (Snapshot, error) {
	state := game.Normalize(payload)
	stateRaw, err := json.Marshal(state)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{State: state, UpdatedBy: userID}
	err = s.db.QueryRow(ctx, `
		UPDATE games
		SET state = $2, version = version + 1, updated_at = now(), updated_by = $3
		WHERE id = $1
		RETURNING version, updated_at
	`, gameID, stateRaw, userID).Scan(&snap.Version, &snap.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("save state: %w", err)
	}
	return snap, nil
}

func (s *Service) upsertMember(ctx context.Context, gameID, userID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = "Guest"
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_members (game_id, user_id, nickname)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, user_id) DO UPDATE SET nickname = EXCLUDED.nickname
	`, gameID, userID, nickname)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// ListMembers returns everyone who ever joined, in join order.
func (s *Service) ListMembers(ctx context.Context, gameID string) ([]Member, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, gameID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_id, nickname, joined_at
		FROM game_members
		WHERE game_id = $1
		ORDER BY joined_at
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Nickname, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// TouchPresence records that a user is online right now.
func (s *Service) TouchPresence(ctx context.Context, gameID, userID, nickname string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_presence (game_id, user_id, nickname, online_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id, user_id) DO UPDATE
		SET nickname = EXCLUDED.nickname, online_at = now()
	`, gameID, userID, nickname)
	if err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

// ClearPresence drops a user's presence row on disconnect.
func (s *Service) ClearPresence(ctx context.Context, gameID, userID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM game_presence WHERE game_id = $1 AND user_id = $2
	`, gameID, userID)
	if err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	return nil
}

// PruneStalePresence deletes presence rows older than maxAge.
func (s *Service) PruneStalePresence(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM game_presence WHERE online_at < now() - $1::interval
	`, intervalArg(maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune presence: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneIdleGames deletes games untouched for longer than retention.
// Members and presence cascade with them.
func (s *Service) PruneIdleGames(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM games WHERE updated_at < now() - $1::interval
	`, intervalArg(retention))
	if err != nil {
		return 0, fmt.Errorf("prune games: %w", err)
	}
	return tag.RowsAffected(), nil
}

func intervalArg(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
