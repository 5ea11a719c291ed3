// Package postgres provides a relational SessionRepository backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/geofence"
)

// Repository stores households and their shifts in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load implements domain.SessionRepository.
func (r *Repository) Load(ctx context.Context, syncKey string) (domain.Snapshot, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer tx.Rollback(ctx)

	var snapshot domain.Snapshot

	var homeLat, homeLng, radius *float64
	row := tx.QueryRow(ctx, `SELECT home_lat, home_lng, radius_meters, hourly_rate FROM households WHERE sync_key=$1`, syncKey)
	if err := row.Scan(&homeLat, &homeLng, &radius, &snapshot.Settings.HourlyRate); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, err
	}
	if homeLat != nil && homeLng != nil {
		home := &geofence.HomeConfig{Lat: *homeLat, Lng: *homeLng}
		if radius != nil {
			home.RadiusMeters = *radius
		}
		snapshot.Settings.Home = home
	}

	const query = `SELECT shift_id, started_at, ended_at, duration_min, note, out_of_bounds, lat, lng
        FROM shifts WHERE sync_key=$1 ORDER BY started_at DESC, shift_id DESC`

	rows, err := tx.Query(ctx, query, syncKey)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s        domain.Session
			lat, lng *float64
		)
		if err := rows.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.DurationInMinutes, &s.Note, &s.IsOutOfBounds, &lat, &lng); err != nil {
			return domain.Snapshot{}, err
		}
		if lat != nil && lng != nil {
			s.Location = &geofence.Coordinate{Lat: *lat, Lng: *lng}
		}
		if s.EndTime == nil {
			active := s
			snapshot.Active = &active
			continue
		}
		snapshot.Sessions = append(snapshot.Sessions, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	return snapshot, nil
}

// Save implements domain.SessionRepository by replacing every row for the household in one transaction.
func (r *Repository) Save(ctx context.Context, syncKey string, snapshot domain.Snapshot) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var homeLat, homeLng, radius *float64
	if home := snapshot.Settings.Home; home != nil {
		homeLat, homeLng, radius = &home.Lat, &home.Lng, &home.RadiusMeters
	}

	const upsertHousehold = `INSERT INTO households (sync_key, home_lat, home_lng, radius_meters, hourly_rate, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (sync_key) DO UPDATE SET home_lat=EXCLUDED.home_lat, home_lng=EXCLUDED.home_lng,
            radius_meters=EXCLUDED.radius_meters, hourly_rate=EXCLUDED.hourly_rate, updated_at=EXCLUDED.updated_at`

	if _, err = tx.Exec(ctx, upsertHousehold, syncKey, homeLat, homeLng, radius, snapshot.Settings.HourlyRate, time.Now().UTC()); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM shifts WHERE sync_key=$1`, syncKey); err != nil {
		return err
	}

	const insertShift = `INSERT INTO shifts (sync_key, shift_id, started_at, ended_at, duration_min, note, out_of_bounds, lat, lng)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	batch := &pgx.Batch{}
	queue := func(s domain.Session) {
		var lat, lng *float64
		if s.Location != nil {
			lat, lng = &s.Location.Lat, &s.Location.Lng
		}
		batch.Queue(insertShift, syncKey, s.ID, s.StartTime.UTC(), utcOrNil(s.EndTime), s.DurationInMinutes, s.Note, s.IsOutOfBounds, lat, lng)
	}
	for _, s := range snapshot.Sessions {
		queue(s)
	}
	if snapshot.Active != nil {
		queue(*snapshot.Active)
	}

	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	return err
}

// Delete implements domain.SessionRepository.
func (r *Repository) Delete(ctx context.Context, syncKey string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM shifts WHERE sync_key=$1`, syncKey); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM households WHERE sync_key=$1`, syncKey); err != nil {
		return err
	}
	err = tx.Commit(ctx)
	return err
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
