// README: Driver store backed by PostgreSQL rows and Redis GEO presence.
package driver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"leafline/internal/types"
)

const geoKey = "dispatch:drivers"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, user_id, vehicle, approved, online, available,
               lat, lng, heading, speed, location_ts_ms,
               rating, total_deliveries, total_earnings, pending_earnings
        FROM drivers
        WHERE id = $1`, string(id),
	)

	var d Driver
	var lat, lng, heading, speed sql.NullFloat64
	var tsMs int64
	err := row.Scan(
		&d.ID, &d.UserID, &d.Vehicle, &d.Approved, &d.Online, &d.Available,
		&lat, &lng, &heading, &speed, &tsMs,
		&d.Rating, &d.TotalDeliveries, &d.TotalEarnings.Amount, &d.PendingEarnings.Amount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		loc := &Location{Point: types.Point{Lat: lat.Float64, Lng: lng.Float64}, TsMs: tsMs}
		if heading.Valid {
			loc.Heading = &heading.Float64
		}
		if speed.Valid {
			loc.Speed = &speed.Float64
		}
		d.Location = loc
	}
	d.TotalEarnings.Currency = "USD"
	d.PendingEarnings.Currency = "USD"
	return &d, nil
}

// SetOnline flips the online flag and keeps the Redis GEO set in sync.
// Going offline always clears availability as well.
func (s *Store) SetOnline(ctx context.Context, id types.ID, online bool, p *types.Point) error {
	var tag interface{ RowsAffected() int64 }
	var err error
	if online {
		tag, err = s.db.Exec(ctx, `
            UPDATE drivers SET online = TRUE, available = TRUE,
                   lat = COALESCE($2, lat), lng = COALESCE($3, lng)
            WHERE id = $1`,
			string(id), latPtr(p), lngPtr(p),
		)
	} else {
		tag, err = s.db.Exec(ctx, `
            UPDATE drivers SET online = FALSE, available = FALSE
            WHERE id = $1`, string(id),
		)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}

	if !online {
		return s.redis.ZRem(ctx, geoKey, string(id)).Err()
	}
	if p != nil {
		return s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      string(id),
			Longitude: p.Lng,
			Latitude:  p.Lat,
		}).Err()
	}
	return nil
}

func (s *Store) SetAvailable(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET available = $2 WHERE id = $1`, string(id), available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// UpdateLocation applies the update only when it is newer than the stored
// one and the driver is online; stale updates miss the conditional and are
// discarded, not queued.
func (s *Store) UpdateLocation(ctx context.Context, id types.ID, loc Location) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE drivers
        SET lat = $2, lng = $3, heading = $4, speed = $5, location_ts_ms = $6
        WHERE id = $1 AND online AND location_ts_ms < $6`,
		string(id), loc.Point.Lat, loc.Point.Lng, loc.Heading, loc.Speed, loc.TsMs,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	err = s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: loc.Point.Lng,
		Latitude:  loc.Point.Lat,
	}).Err()
	return true, err
}

// Nearby returns online driver ids ordered by distance from p.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func latPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func lngPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}
