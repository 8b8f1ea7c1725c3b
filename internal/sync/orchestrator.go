// Package sync bridges local dispatches and remote snapshots for one game
// session. It is best-effort last-writer-wins at snapshot granularity, not
// a CRDT: two concurrent writers can clobber each other and the newest
// version stands.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	stdsync "sync"
	"time"

	"railtally/internal/game"
	"railtally/internal/rpc"
	"railtally/internal/store"
)

// Remote is the backend slice the orchestrator needs.
type Remote interface {
	SaveState(ctx context.Context, gameID, userID string, state *game.State) (rpc.Snapshot, error)
	Subscribe(ctx context.Context, gameID, userID, nickname string, onEvent func(rpc.Event)) (io.Closer, error)
}

// WrapClient adapts the concrete RPC client to the Remote interface.
func WrapClient(c *rpc.Client) Remote {
	return clientRemote{c}
}

type clientRemote struct {
	c *rpc.Client
}

func (r clientRemote) SaveState(ctx context.Context, gameID, userID string, state *game.State) (rpc.Snapshot, error) {
	return r.c.SaveState(ctx, gameID, userID, state)
}

func (r clientRemote) Subscribe(ctx context.Context, gameID, userID, nickname string, onEvent func(rpc.Event)) (io.Closer, error) {
	return r.c.Subscribe(ctx, gameID, userID, nickname, onEvent)
}

// Config wires one game session.
type Config struct {
	GameID   string
	UserID   string
	Nickname string
	// Debounce is the quiet period local dispatches are coalesced over
	// before a save goes out.
	Debounce time.Duration
	Local    *store.Local
	Remote   Remote
	// Apply replaces the host's live state, typically by dispatching a
	// load action. Called from the subscription goroutine.
	Apply  func(*game.State)
	Logger *slog.Logger
}

type Orchestrator struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu          stdsync.Mutex
	timer       *time.Timer
	pending     *game.State
	lastVersion int64
	lastContent []byte
	skipNext    bool
	sub         io.Closer
	closed      bool
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 800 * time.Millisecond
	}
	return &Orchestrator{cfg: cfg}
}

// Start attaches the live feed. The initial snapshot's version seeds the
// gate so the first remote echo of a known state is ignored.
func (o *Orchestrator) Start(ctx context.Context, initial rpc.Snapshot) error {
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Lock()
	o.lastVersion = initial.Version
	o.lastContent = serialize(initial.State)
	o.mu.Unlock()

	sub, err := o.cfg.Remote.Subscribe(o.ctx, o.cfg.GameID, o.cfg.UserID, o.cfg.Nickname, o.onEvent)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.sub = sub
	o.mu.Unlock()
	return nil
}

// StateChanged reacts to a local dispatch: cache the state locally and
// schedule a debounced save. When the change came from an applied remote
// snapshot, the save reaction is skipped exactly once so the client does
// not echo the snapshot back as a fresh edit.
func (o *Orchestrator) StateChanged(s *game.State) {
	if err := o.cfg.Local.Save(o.cfg.GameID, s); err != nil {
		o.cfg.Logger.Warn("local cache write failed", "game_id", o.cfg.GameID, "err", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.skipNext {
		o.skipNext = false
		o.lastContent = serialize(s)
		return
	}
	o.pending = s
	o.lastContent = serialize(s)
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.cfg.Debounce, o.flush)
}

func (o *Orchestrator) flush() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	state := o.pending
	o.pending = nil
	o.mu.Unlock()
	if state == nil {
		return
	}
	o.save(state)
}

func (o *Orchestrator) save(state *game.State) {
	snap, err := o.cfg.Remote.SaveState(o.ctx, o.cfg.GameID, o.cfg.UserID, state)
	if err != nil {
		// Park the unsent state instead of dropping it; Resend delivers
		// it later.
		o.cfg.Logger.Warn("remote save failed, keeping draft",
			"game_id", o.cfg.GameID, "transient", rpc.IsTransient(err), "err", err)
		if derr := o.cfg.Local.SaveDraft(o.cfg.GameID, state); derr != nil {
			o.cfg.Logger.Error("draft write failed", "game_id", o.cfg.GameID, "err", derr)
		}
		return
	}
	o.mu.Lock()
	if snap.Version > o.lastVersion {
		o.lastVersion = snap.Version
	}
	o.mu.Unlock()
	if err := o.cfg.Local.ClearDraft(o.cfg.GameID); err != nil {
		o.cfg.Logger.Warn("draft clear failed", "game_id", o.cfg.GameID, "err", err)
	}
}

// Resend delivers a parked draft, if one exists.
func (o *Orchestrator) Resend(ctx context.Context) error {
	draft, ok := o.cfg.Local.LoadDraft(o.cfg.GameID)
	if !ok {
		return nil
	}
	snap, err := o.cfg.Remote.SaveState(ctx, o.cfg.GameID, o.cfg.UserID, draft)
	if err != nil {
		return err
	}
	o.mu.Lock()
	if snap.Version > o.lastVersion {
		o.lastVersion = snap.Version
	}
	o.mu.Unlock()
	return o.cfg.Local.ClearDraft(o.cfg.GameID)
}

// HasDraft reports whether an unsynced draft is waiting.
func (o *Orchestrator) HasDraft() bool {
	_, ok := o.cfg.Local.LoadDraft(o.cfg.GameID)
	return ok
}

func (o *Orchestrator) onEvent(evt rpc.Event) {
	if evt.Type != "state" {
		return
	}
	state := game.Normalize(evt.State)
	content := serialize(state)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	// Apply when the version moved forward, or when the content differs
	// from what we hold; some backends do not reliably bump versions.
	newer := evt.Version > o.lastVersion
	differs := !bytes.Equal(content, o.lastContent)
	if !newer && !differs {
		o.mu.Unlock()
		return
	}
	if evt.Version > o.lastVersion {
		o.lastVersion = evt.Version
	}
	o.skipNext = true
	o.mu.Unlock()

	o.cfg.Apply(state)
}

// Close fully tears the session down: pending debounce timer, the
// subscription, and the feed context. No event may straddle into a new
// session's stream.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.pending = nil
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}

func serialize(s *game.State) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return raw
}
