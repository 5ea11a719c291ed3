package app

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/nannytracker/internal/config"
	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/events"
	"example.com/nannytracker/internal/location"
	"example.com/nannytracker/internal/summary"
)

func testConfig(backend string) config.Config {
	return config.Config{
		StorageBackend:      backend,
		LocationTimeout:     time.Second,
		DefaultHourlyRate:   22,
		DefaultRadiusMeters: 75,
		SummaryTimeout:      time.Second,
	}
}

func TestSetupInfraMemoryUsesNoopPublisher(t *testing.T) {
	infra, err := SetupInfra(context.Background(), testConfig(config.BackendMemory))
	require.NoError(t, err)
	defer infra.Close()

	require.IsType(t, events.NoopPublisher{}, infra.Publisher)

	svc := NewService(testConfig(config.BackendMemory), infra)
	settings, err := svc.Settings(context.Background(), "smith")
	require.NoError(t, err)
	require.Equal(t, 22.0, settings.Rate())
}

func TestSetupInfraSQLitePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "tracker.db")

	infra, err := SetupInfra(ctx, cfg)
	require.NoError(t, err)
	svc := NewService(cfg, infra)
	_, err = svc.ClockIn(ctx, "smith", location.Fixed{Lat: 40, Lng: -73})
	require.NoError(t, err)
	require.NoError(t, infra.Close())

	reopened, err := SetupInfra(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	status, err := NewService(cfg, reopened).Status(ctx, "smith")
	require.NoError(t, err)
	require.Equal(t, domain.StatusClockedIn, status.Status)
}

func TestSetupInfraRejectsUnknownBackend(t *testing.T) {
	_, err := SetupInfra(context.Background(), testConfig("etcd"))
	require.Error(t, err)
}

func TestNewSummarizerFallsBackWithoutKey(t *testing.T) {
	client := NewSummarizer(testConfig(config.BackendMemory), summary.WithLogger(log.New(io.Discard, "", 0)))
	_, err := client.Generate(context.Background(), nil)
	require.ErrorIs(t, err, summary.ErrNotConfigured)
	require.Equal(t, summary.FallbackText, client.Summarize(context.Background(), nil))
}
