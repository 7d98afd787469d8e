// README: Dispatch matcher: candidate ranking, admin assignment, driver self-accept.
package dispatch

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"leafline/internal/config"
	"leafline/internal/logger"
	"leafline/internal/maps"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/order"
	"leafline/internal/types"
)

var ErrDriverUnavailable = errors.New("driver is not online and available")

// OrderBinder is the slice of the order service the matcher drives.
type OrderBinder interface {
	Assign(ctx context.Context, orderID, driverID, adminID types.ID) (*order.Order, error)
	Accept(ctx context.Context, orderID, driverID types.ID) (*order.Order, error)
}

// DriverDirectory is the slice of the driver service the matcher reads.
type DriverDirectory interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error)
	SetAvailable(ctx context.Context, id types.ID, available bool) error
}

type Service struct {
	orders  OrderBinder
	drivers DriverDirectory
	cfg     config.DispatchConfig
}

func NewService(orders OrderBinder, drivers DriverDirectory, cfg config.DispatchConfig) *Service {
	return &Service{orders: orders, drivers: drivers, cfg: cfg}
}

type Candidate struct {
	Driver     *driver.Driver
	DistanceKm float64
}

// FindCandidates returns eligible drivers for the order, ranked. Eligibility:
// approved, online, and available. Ranking: straight-line distance to the
// delivery point ascending, ties broken by rating descending, then driver id
// for determinism.
func (s *Service) FindCandidates(ctx context.Context, o *order.Order) ([]Candidate, error) {
	// Over-fetch: the GEO set contains online drivers regardless of
	// availability, so some ids are filtered out below.
	ids, err := s.drivers.Nearby(ctx, o.Dropoff, s.cfg.SearchRadiusKm, s.cfg.MaxCandidates*3)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		d, err := s.drivers.Get(ctx, id)
		if err != nil {
			if errors.Is(err, driver.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !eligible(d) {
			continue
		}
		c := Candidate{Driver: d}
		if d.Location != nil {
			c.DistanceKm = maps.HaversineKm(d.Location.Point, o.Dropoff)
		}
		candidates = append(candidates, c)
	}

	RankCandidates(candidates)
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	return candidates, nil
}

func eligible(d *driver.Driver) bool {
	return d.Approved && d.Online && d.Available
}

// RankCandidates orders by distance ascending, rating descending, id.
func RankCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].DistanceKm != cs[j].DistanceKm {
			return cs[i].DistanceKm < cs[j].DistanceKm
		}
		if cs[i].Driver.Rating != cs[j].Driver.Rating {
			return cs[i].Driver.Rating > cs[j].Driver.Rating
		}
		return cs[i].Driver.ID < cs[j].Driver.ID
	})
}

// Assign is the admin-initiated direct assignment, bypassing self-accept.
// The target driver must currently be online and available.
func (s *Service) Assign(ctx context.Context, orderID, driverID, adminID types.ID) (*order.Order, error) {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !eligible(d) {
		return nil, ErrDriverUnavailable
	}
	return s.orders.Assign(ctx, orderID, driverID, adminID)
}

// Accept is the driver self-accept path. The winning driver becomes
// unavailable for further dispatch until the delivery resolves.
func (s *Service) Accept(ctx context.Context, orderID, driverID types.ID) (*order.Order, error) {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online || !d.Approved {
		return nil, ErrDriverUnavailable
	}
	o, err := s.orders.Accept(ctx, orderID, driverID)
	if err != nil {
		return nil, err
	}
	// The bind is the commit point. A failed availability flip must not
	// report the won accept as an error; the driver is busy either way.
	if err := s.drivers.SetAvailable(ctx, driverID, false); err != nil {
		logger.Log.Warn("availability flip failed after accept",
			zap.String("driver_id", string(driverID)),
			zap.String("order_id", string(o.ID)),
			zap.Error(err))
	}
	return o, nil
}
