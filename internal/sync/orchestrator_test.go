package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdsync "sync"
	"testing"
	"time"

	"railtally/internal/game"
	"railtally/internal/rpc"
	"railtally/internal/store"
)

type fakeRemote struct {
	mu      stdsync.Mutex
	saves   []*game.State
	version int64
	fail    bool
	onEvent func(rpc.Event)
}

func (f *fakeRemote) SaveState(_ context.Context, _, _ string, state *game.State) (rpc.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return rpc.Snapshot{}, rpc.Transient{Err: errors.New("backend down")}
	}
	f.version++
	f.saves = append(f.saves, state)
	return rpc.Snapshot{State: state, Version: f.version}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (f *fakeRemote) Subscribe(_ context.Context, _, _, _ string, onEvent func(rpc.Event)) (io.Closer, error) {
	f.mu.Lock()
	f.onEvent = onEvent
	f.mu.Unlock()
	return nopCloser{}, nil
}

func (f *fakeRemote) push(evt rpc.Event) {
	f.mu.Lock()
	handler := f.onEvent
	f.mu.Unlock()
	if handler != nil {
		handler(evt)
	}
}

func (f *fakeRemote) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeRemote) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type applied struct {
	mu     stdsync.Mutex
	states []*game.State
}

func (a *applied) apply(s *game.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = append(a.states, s)
}

func (a *applied) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}

func newOrchestrator(t *testing.T, remote *fakeRemote, apply func(*game.State)) *Orchestrator {
	t.Helper()
	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	if apply == nil {
		apply = func(*game.State) {}
	}
	o := New(Config{
		GameID:   "g1",
		UserID:   "u1",
		Nickname: "Ada",
		Debounce: 20 * time.Millisecond,
		Local:    local,
		Remote:   remote,
		Apply:    apply,
	})
	if err := o.Start(context.Background(), rpc.Snapshot{State: game.NewState(), Version: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestDebouncedSaveCoalesces(t *testing.T) {
	remote := &fakeRemote{version: 1}
	o := newOrchestrator(t, remote, nil)

	s := game.NewState()
	for _, name := range []string{"Ada", "Brahm", "Cleo"} {
		s = game.Reduce(s, game.AddPlayers{Names: []string{name}})
		o.StateChanged(s)
	}

	waitFor(t, func() bool { return remote.saveCount() == 1 })
	// Quiet period passed; no further writes should trickle out.
	time.Sleep(50 * time.Millisecond)
	if got := remote.saveCount(); got != 1 {
		t.Fatalf("burst of dispatches produced %d saves, want 1", got)
	}
	remote.mu.Lock()
	saved := remote.saves[0]
	remote.mu.Unlock()
	if len(saved.Players) != 3 {
		t.Fatalf("coalesced save must carry the final state, got %d players", len(saved.Players))
	}
}

func TestRemoteApplyGatesOnVersion(t *testing.T) {
	remote := &fakeRemote{version: 1}
	sink := &applied{}
	newOrchestrator(t, remote, sink.apply)

	next := game.Reduce(game.NewState(), game.AddPlayers{Names: []string{"Zo"}})
	payload := stateMap(t, next)

	// Stale version and identical content: ignored.
	base := stateMap(t, game.NewState())
	remote.push(rpc.Event{Type: "state", State: base, Version: 1})
	if sink.count() != 0 {
		t.Fatalf("stale snapshot must not apply")
	}

	// Newer version applies.
	remote.push(rpc.Event{Type: "state", State: payload, Version: 2})
	waitFor(t, func() bool { return sink.count() == 1 })

	// Same version but different content applies too; not every backend
	// bumps versions reliably.
	other := game.Reduce(next, game.AddCompany{Name: "B&O"})
	remote.push(rpc.Event{Type: "state", State: stateMap(t, other), Version: 2})
	waitFor(t, func() bool { return sink.count() == 2 })
}

func TestRemoteApplySuppressesEchoSave(t *testing.T) {
	remote := &fakeRemote{version: 1}
	var o *Orchestrator
	// Mimic the host: applying a remote snapshot re-enters StateChanged,
	// just like a local dispatch would.
	sink := &applied{}
	apply := func(s *game.State) {
		sink.apply(s)
		o.StateChanged(s)
	}
	o = newOrchestrator(t, remote, apply)

	next := game.Reduce(game.NewState(), game.AddPlayers{Names: []string{"Zo"}})
	remote.push(rpc.Event{Type: "state", State: stateMap(t, next), Version: 2})
	waitFor(t, func() bool { return sink.count() == 1 })

	time.Sleep(60 * time.Millisecond)
	if got := remote.saveCount(); got != 0 {
		t.Fatalf("applying a remote snapshot must not echo a save, got %d", got)
	}

	// The skip is one-shot: a real local edit afterwards still saves.
	o.StateChanged(game.Reduce(next, game.AddCompany{Name: "B&O"}))
	waitFor(t, func() bool { return remote.saveCount() == 1 })
}

func TestFailedSaveParksDraftAndResends(t *testing.T) {
	remote := &fakeRemote{version: 1}
	o := newOrchestrator(t, remote, nil)
	remote.setFail(true)

	s := game.Reduce(game.NewState(), game.AddPlayers{Names: []string{"Ada"}})
	o.StateChanged(s)
	waitFor(t, o.HasDraft)
	if remote.saveCount() != 0 {
		t.Fatalf("failed save must not be recorded")
	}

	remote.setFail(false)
	if err := o.Resend(context.Background()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if remote.saveCount() != 1 {
		t.Fatalf("resend must deliver the draft")
	}
	if o.HasDraft() {
		t.Fatalf("draft must clear after a successful resend")
	}
}

func TestCloseStopsPendingSave(t *testing.T) {
	remote := &fakeRemote{version: 1}
	o := newOrchestrator(t, remote, nil)

	o.StateChanged(game.Reduce(game.NewState(), game.AddPlayers{Names: []string{"Ada"}}))
	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if got := remote.saveCount(); got != 0 {
		t.Fatalf("closed session must not flush, got %d saves", got)
	}

	// Events arriving after teardown are dropped.
	remote.push(rpc.Event{Type: "state", State: stateMap(t, game.NewState()), Version: 99})
	o.StateChanged(game.NewState())
	time.Sleep(40 * time.Millisecond)
	if got := remote.saveCount(); got != 0 {
		t.Fatalf("closed session accepted work, got %d saves", got)
	}
}

// stateMap reshapes a state the way a decoded websocket payload carries
// it.
func stateMap(t *testing.T, s *game.State) map[string]any {
	t.Helper()
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}
