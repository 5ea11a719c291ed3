package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/persistence/kv"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nanny.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))
	require.NoError(t, store.Set(ctx, "k", []byte("v2")))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(value))

	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Remove(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreApplyWritesAndRemovesTogether(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	require.NoError(t, store.Set(ctx, "stale", []byte("old")))
	require.NoError(t, store.Apply(ctx, []kv.Op{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "stale"},
	}))

	value, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "2", string(value))
	_, err = store.Get(ctx, "stale")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreApplyRollsBackOnCancelledContext(t *testing.T) {
	store, _ := openTestStore(t)
	require.NoError(t, store.Set(context.Background(), "a", []byte("kept")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Apply(ctx, []kv.Op{{Key: "a", Value: []byte("lost")}, {Key: "b", Value: []byte("lost")}})
	require.Error(t, err)

	value, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "kept", string(value))
	_, err = store.Get(context.Background(), "b")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)
	repo := kv.NewRepository(store)

	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	done := domain.Session{ID: "s-1", StartTime: start}.Complete(start.Add(2*time.Hour), "")
	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{Sessions: []domain.Session{done}}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := kv.NewRepository(reopened).Load(ctx, "family")
	require.NoError(t, err)
	require.Len(t, loaded.Sessions, 1)
	require.Equal(t, 120, loaded.Sessions[0].Minutes())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
