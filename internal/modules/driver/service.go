// README: Driver service: presence, availability, and high-frequency location updates.
package driver

import (
	"context"

	"go.uber.org/zap"

	"leafline/internal/logger"
	"leafline/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetOnline(ctx context.Context, id types.ID, online bool, p *types.Point) error {
	return s.store.SetOnline(ctx, id, online, p)
}

// ForceOffline is the disconnect fail-safe: a driver who drops their
// connection must not remain falsely online.
func (s *Service) ForceOffline(id types.ID) {
	if err := s.store.SetOnline(context.Background(), id, false, nil); err != nil {
		logger.Log.Warn("force offline failed", zap.String("driver_id", string(id)), zap.Error(err))
	}
}

// SetAvailable flips dispatch availability; online status is untouched
// (a driver mid-delivery is online but unavailable).
func (s *Service) SetAvailable(ctx context.Context, id types.ID, available bool) error {
	return s.store.SetAvailable(ctx, id, available)
}

// ReportLocation applies a location ping. Returns false when the update was
// discarded: malformed, driver offline, or older than the stored location.
func (s *Service) ReportLocation(ctx context.Context, id types.ID, loc Location) (bool, error) {
	if !loc.Valid() {
		return false, nil
	}
	return s.store.UpdateLocation(ctx, id, loc)
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	return s.store.Nearby(ctx, p, radiusKm, limit)
}
