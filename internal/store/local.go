// Package store persists versioned game snapshots on the local machine.
// It is the offline half of the sync story: the source of truth when no
// backend is reachable, and the fallback cache when one is.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"railtally/internal/game"
)

// SchemaVersion is bumped whenever the stored state shape changes in a way
// normalization cannot absorb. Envelopes with any other version are
// treated as absent; there is no partial migration.
const SchemaVersion = 1

// Envelope is the on-disk wrapper around a snapshot.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	State         json.RawMessage `json:"state"`
	LastUpdated   string          `json:"last_updated"`
}

type Local struct {
	dir string
	now func() time.Time
}

// NewLocal opens (creating if needed) the store rooted at dir. An empty
// dir places it under the user's home directory.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".railtally")
	}
	if err := os.MkdirAll(filepath.Join(dir, "games"), 0o700); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "drafts"), 0o700); err != nil {
		return nil, err
	}
	return &Local{dir: dir, now: time.Now}, nil
}

var unsafeKeyRE = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func safeKey(key string) string {
	key = unsafeKeyRE.ReplaceAllString(key, "_")
	if key == "" {
		key = "default"
	}
	return key
}

func (l *Local) gamePath(key string) string {
	return filepath.Join(l.dir, "games", safeKey(key)+".json")
}

func (l *Local) draftPath(key string) string {
	return filepath.Join(l.dir, "drafts", safeKey(key)+".json")
}

// Load returns the stored state for key, fully normalized. It reports
// false on a missing key, parse failure, or schema-version mismatch, and
// never returns a partially-populated state.
func (l *Local) Load(key string) (*game.State, bool) {
	return readEnvelope(l.gamePath(key))
}

// Save writes the snapshot under key inside a versioned envelope.
func (l *Local) Save(key string, state *game.State) error {
	return writeEnvelope(l.gamePath(key), state, l.now())
}

// Clear removes the stored snapshot for key, if any.
func (l *Local) Clear(key string) error {
	return removeIfPresent(l.gamePath(key))
}

// SaveDraft parks a state that could not be delivered to the backend. The
// draft survives restarts so an interrupted session can resend it.
func (l *Local) SaveDraft(key string, state *game.State) error {
	return writeEnvelope(l.draftPath(key), state, l.now())
}

// LoadDraft returns the pending unsynced state for key, if one exists.
func (l *Local) LoadDraft(key string) (*game.State, bool) {
	return readEnvelope(l.draftPath(key))
}

// ClearDraft drops the pending draft after a successful resend.
func (l *Local) ClearDraft(key string) error {
	return removeIfPresent(l.draftPath(key))
}

func readEnvelope(path string) (*game.State, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.SchemaVersion != SchemaVersion {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(env.State, &v); err != nil {
		return nil, false
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, false
	}
	return game.Normalize(v), true
}

func writeEnvelope(path string, state *game.State, now time.Time) error {
	stateRaw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	env := Envelope{
		SchemaVersion: SchemaVersion,
		State:         stateRaw,
		LastUpdated:   now.UTC().Format(time.RFC3339),
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func removeIfPresent(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
