package placement

import (
	"fmt"

	"github.com/banshee-data/lighthouse/internal/monitoring"
	"github.com/banshee-data/lighthouse/internal/prefs"
)

// DefaultKey is the preference key the placement set is stored under.
const DefaultKey = "_saveData"

var logf = monitoring.Component("placement")

// Repository loads and saves a whole Set under one preference key.
// It is not safe for concurrent writers.
type Repository struct {
	store prefs.Store
	key   string
}

// NewRepository returns a Repository over store. An empty key uses DefaultKey.
func NewRepository(store prefs.Store, key string) *Repository {
	if key == "" {
		key = DefaultKey
	}
	return &Repository{store: store, key: key}
}

// Key returns the preference key in use.
func (r *Repository) Key() string {
	return r.key
}

// Load returns the stored set, or an empty set when nothing has been saved.
// Malformed stored text yields an error matching ErrFormat; storage failures
// match prefs.ErrStoreUnavailable. Loaded records are passed through Sanitize.
func (r *Repository) Load() (Set, error) {
	text, ok, err := r.store.Get(r.key)
	if err != nil {
		return Set{}, fmt.Errorf("load placements: %w", err)
	}
	if !ok {
		return Set{}, nil
	}

	set, err := Deserialize(text)
	if err != nil {
		return Set{}, fmt.Errorf("load placements from %q: %w", r.key, err)
	}

	set, report := Sanitize(set)
	if report.Changed() {
		logf("repaired stored placements under %q: %s", r.key, report)
	}
	return set, nil
}

// Save replaces the stored set with s and commits before returning.
func (r *Repository) Save(s Set) error {
	text, err := Serialize(s)
	if err != nil {
		return err
	}
	if err := r.store.Set(r.key, text); err != nil {
		return fmt.Errorf("save placements: %w", err)
	}
	if err := r.store.Commit(); err != nil {
		return fmt.Errorf("save placements: %w", err)
	}
	return nil
}
