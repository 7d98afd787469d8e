// README: Earnings service: computes delivery pay and credits it exactly once per order.
package earnings

import (
	"context"
	"errors"
	"time"

	"leafline/internal/config"
	"leafline/internal/maps"
	"leafline/internal/modules/order"
	"leafline/internal/types"
)

var ErrNotCreditable = errors.New("earnings: order not creditable")

type Service struct {
	store *Store
	cfg   config.PayConfig
}

func NewService(store *Store, cfg config.PayConfig) *Service {
	return &Service{store: store, cfg: cfg}
}

// AccrueForDelivery credits the delivering driver for a completed order.
// Returns credited=false when the order was already credited; the call
// is safe to repeat.
func (s *Service) AccrueForDelivery(ctx context.Context, o *order.Order) (bool, error) {
	if o.DriverID == nil || o.Status != order.StatusDelivered {
		return false, ErrNotCreditable
	}
	b := ComputePay(s.cfg.BasePayCents, s.cfg.PerMileCents, maps.KmToMiles(o.DistanceKm), o.Tip.Amount)
	return s.store.Accrue(ctx, *o.DriverID, o.ID, b)
}

// WeeklySummary returns pay accrued over the trailing seven days.
func (s *Service) WeeklySummary(ctx context.Context, driverID types.ID) (types.Money, error) {
	return s.store.SumSince(ctx, driverID, time.Now().AddDate(0, 0, -7))
}

// MonthlySummary returns pay accrued over the trailing thirty days.
func (s *Service) MonthlySummary(ctx context.Context, driverID types.ID) (types.Money, error) {
	return s.store.SumSince(ctx, driverID, time.Now().AddDate(0, 0, -30))
}
