// Package kv implements domain.SessionRepository on top of a plain key-value medium.
package kv

import (
	"context"
	"errors"

	"example.com/nannytracker/internal/domain"
)

// ErrNotFound is returned by Store.Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Op is one write in a batch. A nil Value removes the key.
type Op struct {
	Key   string
	Value []byte
}

// Store is the minimal key-value capability the repository needs. Apply must
// make every op visible together or none of them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Apply(ctx context.Context, ops []Op) error
}

// Repository stores a household snapshot as three values: history, active slot and settings.
type Repository struct {
	store  Store
	prefix string
}

// NewRepository constructs a Repository over store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store, prefix: "nanny:"}
}

func (r *Repository) sessionsKey(syncKey string) string { return r.prefix + syncKey + ":sessions" }
func (r *Repository) activeKey(syncKey string) string   { return r.prefix + syncKey + ":active" }
func (r *Repository) settingsKey(syncKey string) string { return r.prefix + syncKey + ":settings" }

// Load implements domain.SessionRepository. Missing keys yield an empty snapshot.
func (r *Repository) Load(ctx context.Context, syncKey string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	raw, err := r.get(ctx, r.sessionsKey(syncKey))
	if err != nil {
		return domain.Snapshot{}, err
	}
	if raw != nil {
		if snapshot.Sessions, err = decodeSessions(raw); err != nil {
			return domain.Snapshot{}, err
		}
	}

	raw, err = r.get(ctx, r.activeKey(syncKey))
	if err != nil {
		return domain.Snapshot{}, err
	}
	if raw != nil {
		if snapshot.Active, err = decodeActive(raw); err != nil {
			return domain.Snapshot{}, err
		}
	}

	raw, err = r.get(ctx, r.settingsKey(syncKey))
	if err != nil {
		return domain.Snapshot{}, err
	}
	if raw != nil {
		if snapshot.Settings, err = decodeSettings(raw); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return snapshot, nil
}

// Save implements domain.SessionRepository. A nil active session removes the active slot.
func (r *Repository) Save(ctx context.Context, syncKey string, snapshot domain.Snapshot) error {
	sessions, err := encodeSessions(snapshot.Sessions)
	if err != nil {
		return err
	}
	settings, err := encodeSettings(snapshot.Settings)
	if err != nil {
		return err
	}
	var active []byte
	if snapshot.Active != nil {
		if active, err = encodeActive(*snapshot.Active); err != nil {
			return err
		}
	}

	return r.store.Apply(ctx, []Op{
		{Key: r.sessionsKey(syncKey), Value: sessions},
		{Key: r.settingsKey(syncKey), Value: settings},
		{Key: r.activeKey(syncKey), Value: active},
	})
}

// Delete implements domain.SessionRepository.
func (r *Repository) Delete(ctx context.Context, syncKey string) error {
	return r.store.Apply(ctx, []Op{
		{Key: r.sessionsKey(syncKey)},
		{Key: r.activeKey(syncKey)},
		{Key: r.settingsKey(syncKey)},
	})
}

func (r *Repository) get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return raw, err
}
