// Package postgres implements store.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS location (
  id          BIGSERIAL PRIMARY KEY,
  location_id VARCHAR(64)  NOT NULL UNIQUE,
  name        VARCHAR(255) NOT NULL DEFAULT '',
  latitude    DOUBLE PRECISION NOT NULL,
  longitude   DOUBLE PRECISION NOT NULL,
  city_id     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_location_city_id ON location (city_id);

CREATE TABLE IF NOT EXISTS event (
  id          BIGSERIAL PRIMARY KEY,
  event_id    VARCHAR(64)  NOT NULL UNIQUE,
  name        VARCHAR(255) NOT NULL DEFAULT '',
  start_time  TIMESTAMPTZ  NOT NULL,
  location_id BIGINT NOT NULL,
  album_id    VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_event_start_time ON event (start_time);
CREATE INDEX IF NOT EXISTS idx_event_location_id ON event (location_id);

CREATE TABLE IF NOT EXISTS photo (
  id          BIGSERIAL PRIMARY KEY,
  photo_url   VARCHAR(768) NOT NULL UNIQUE,
  event_id    BIGINT NOT NULL,
  location_id BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photo_event_id ON photo (event_id);
`

// Store is a pgx backed store.Store
type Store struct {
	Pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a connection pool for dsn and checks that the database answers
func Connect(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	s := &Store{Pool: pool}
	if err := s.Ready(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

// Ready pings the database
func (s *Store) Ready(ctx context.Context) error {
	var one int
	return s.Pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return errs.Storage("exec migration", err)
	}
	return nil
}

func (s *Store) UpsertLocation(ctx context.Context, loc *store.Location) (bool, error) {
	return s.insertReturningID(ctx, &loc.ID,
		`INSERT INTO location (location_id, name, latitude, longitude, city_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (location_id) DO NOTHING
		 RETURNING id`,
		loc.LocationID, loc.Name, loc.Latitude, loc.Longitude, loc.CityID)
}

func (s *Store) UpsertPhoto(ctx context.Context, p *store.Photo) (bool, error) {
	return s.insertReturningID(ctx, &p.ID,
		`INSERT INTO photo (photo_url, event_id, location_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (photo_url) DO NOTHING
		 RETURNING id`,
		p.PhotoURL, p.EventID, p.LocationID)
}

// insertReturningID reports false when the conflict clause suppressed the row
func (s *Store) insertReturningID(ctx context.Context, id *int64, sql string, args ...any) (bool, error) {
	err := s.Pool.QueryRow(ctx, sql, args...).Scan(id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Storage("insert", err)
	}
	return true, nil
}

func (s *Store) RecentEvents(ctx context.Context, cityID int64, since time.Time) ([]store.EventRef, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT e.id, e.event_id, e.name, e.start_time, e.album_id, l.id, l.location_id
FROM event e
JOIN location l ON l.id = e.location_id
WHERE l.city_id = $1 AND e.start_time > $2
ORDER BY e.start_time, e.id`, cityID, since)
	if err != nil {
		return nil, errs.Storage("select recent events", err)
	}
	defer rows.Close()

	var out []store.EventRef
	for rows.Next() {
		var r store.EventRef
		if err := rows.Scan(&r.ID, &r.EventID, &r.Name, &r.StartTime, &r.AlbumID, &r.LocationRowID, &r.LocationID); err != nil {
			return nil, errs.Storage("scan event", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("iterate events", err)
	}
	return out, nil
}

func (s *Store) SetEventAlbum(ctx context.Context, eventRowID int64, albumID string) (bool, error) {
	ct, err := s.Pool.Exec(ctx, `UPDATE event SET album_id = $1 WHERE id = $2 AND (album_id IS NULL OR album_id = '')`, albumID, eventRowID)
	if err != nil {
		return false, errs.Storage("set event album", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) EventAlbum(ctx context.Context, eventRowID int64) (string, error) {
	var albumID *string
	if err := s.Pool.QueryRow(ctx, `SELECT album_id FROM event WHERE id = $1`, eventRowID).Scan(&albumID); err != nil {
		return "", errs.Storage("select event album", err)
	}
	if albumID == nil {
		return "", nil
	}
	return *albumID, nil
}
