package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/geofence"
)

func rate(v float64) *float64 { return &v }

func TestRepositoryRoundTripsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())

	start := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	completed := domain.Session{ID: "s-1", StartTime: start, Location: &geofence.Coordinate{Lat: 40, Lng: -73}}.
		Complete(start.Add(90*time.Minute), "park day")
	active := domain.Session{ID: "s-2", StartTime: start.Add(24 * time.Hour)}

	snapshot := domain.Snapshot{
		Sessions: []domain.Session{completed},
		Active:   &active,
		Settings: domain.Settings{
			Home:       &geofence.HomeConfig{Lat: 40, Lng: -73, RadiusMeters: 150},
			HourlyRate: rate(22.5),
		},
	}
	require.NoError(t, repo.Save(ctx, "family-a", snapshot))

	loaded, err := repo.Load(ctx, "family-a")
	require.NoError(t, err)
	require.Len(t, loaded.Sessions, 1)
	require.Equal(t, "s-1", loaded.Sessions[0].ID)
	require.Equal(t, 90, loaded.Sessions[0].Minutes())
	require.Equal(t, "park day", loaded.Sessions[0].Note)
	require.True(t, start.Equal(loaded.Sessions[0].StartTime))
	require.NotNil(t, loaded.Sessions[0].Location)
	require.NotNil(t, loaded.Active)
	require.Equal(t, "s-2", loaded.Active.ID)
	require.True(t, loaded.Active.Active())
	require.Equal(t, 22.5, loaded.Settings.Rate())
	require.Equal(t, 150.0, loaded.Settings.Home.RadiusMeters)
}

func TestRepositorySaveWithoutActiveClearsSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	active := domain.Session{ID: "s-1", StartTime: time.Now()}
	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{Active: &active}))

	loaded, err := repo.Load(ctx, "family")
	require.NoError(t, err)
	require.NotNil(t, loaded.Active)

	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{}))
	loaded, err = repo.Load(ctx, "family")
	require.NoError(t, err)
	require.Nil(t, loaded.Active)

	_, err = store.Get(ctx, "nanny:family:active")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryPartitionsDoNotLeak(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())

	done := domain.Session{ID: "s-1", StartTime: time.Now().Add(-time.Hour)}.Complete(time.Now(), "")
	require.NoError(t, repo.Save(ctx, "A", domain.Snapshot{Sessions: []domain.Session{done}}))

	loaded, err := repo.Load(ctx, "B")
	require.NoError(t, err)
	require.True(t, loaded.Empty())
}

func TestRepositoryDeleteRemovesAllKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	active := domain.Session{ID: "s-1", StartTime: time.Now()}
	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{Active: &active, Settings: domain.Settings{HourlyRate: rate(18)}}))
	require.Equal(t, 3, store.Len())

	require.NoError(t, repo.Delete(ctx, "family"))
	require.Zero(t, store.Len())
}

func TestRepositoryReadsBrowserExport(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	exported := `[{"id":"1700000000000","startTime":1700000000000,"endTime":1700003600000,"durationInMinutes":60,"isOutOfBounds":true,"location":{"lat":40.1,"lng":-73.2}}]`
	require.NoError(t, store.Set(ctx, "nanny:legacy:sessions", []byte(exported)))

	loaded, err := repo.Load(ctx, "legacy")
	require.NoError(t, err)
	require.Len(t, loaded.Sessions, 1)
	require.Equal(t, 60, loaded.Sessions[0].Minutes())
	require.True(t, loaded.Sessions[0].IsOutOfBounds)
	require.Equal(t, 40.1, loaded.Sessions[0].Location.Lat)
}

func TestRepositoryKeepsZeroRateDistinctFromUnset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewRepository(store)

	require.NoError(t, repo.Save(ctx, "volunteer", domain.Snapshot{Settings: domain.Settings{HourlyRate: rate(0)}}))
	loaded, err := repo.Load(ctx, "volunteer")
	require.NoError(t, err)
	require.NotNil(t, loaded.Settings.HourlyRate)
	require.Equal(t, 0.0, *loaded.Settings.HourlyRate)

	raw, err := store.Get(ctx, "nanny:volunteer:settings")
	require.NoError(t, err)
	require.JSONEq(t, `{"hourlyRate":0}`, string(raw))

	require.NoError(t, repo.Save(ctx, "unset", domain.Snapshot{}))
	loaded, err = repo.Load(ctx, "unset")
	require.NoError(t, err)
	require.Nil(t, loaded.Settings.HourlyRate)
}

type batchRecorder struct {
	*MemoryStore
	batches [][]Op
	writes  int
}

func (b *batchRecorder) Set(ctx context.Context, key string, value []byte) error {
	b.writes++
	return b.MemoryStore.Set(ctx, key, value)
}

func (b *batchRecorder) Remove(ctx context.Context, key string) error {
	b.writes++
	return b.MemoryStore.Remove(ctx, key)
}

func (b *batchRecorder) Apply(ctx context.Context, ops []Op) error {
	b.batches = append(b.batches, ops)
	return b.MemoryStore.Apply(ctx, ops)
}

func TestRepositoryWritesSnapshotInOneBatch(t *testing.T) {
	ctx := context.Background()
	store := &batchRecorder{MemoryStore: NewMemoryStore()}
	repo := NewRepository(store)

	start := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	active := domain.Session{ID: "s-1", StartTime: start}
	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{Active: &active}))

	done := active.Complete(start.Add(time.Hour), "")
	require.NoError(t, repo.Save(ctx, "family", domain.Snapshot{Sessions: []domain.Session{done}}))

	require.Zero(t, store.writes)
	require.Len(t, store.batches, 2)
	closing := store.batches[1]
	require.Len(t, closing, 3)
	keys := make([]string, 0, len(closing))
	for _, op := range closing {
		keys = append(keys, op.Key)
		if op.Key == "nanny:family:active" {
			require.Nil(t, op.Value)
		}
	}
	require.ElementsMatch(t, []string{"nanny:family:sessions", "nanny:family:settings", "nanny:family:active"}, keys)

	loaded, err := repo.Load(ctx, "family")
	require.NoError(t, err)
	require.Nil(t, loaded.Active)
	require.Len(t, loaded.Sessions, 1)

	require.NoError(t, repo.Delete(ctx, "family"))
	require.Len(t, store.batches, 3)
	require.Zero(t, store.Len())
}
