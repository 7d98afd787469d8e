// README: Order service implements creation, state transitions, and cancellation.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leafline/internal/config"
	"leafline/internal/modules/catalog"
	"leafline/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrValidation        = errors.New("invalid order request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order state conflict")
	ErrAlreadyAssigned   = errors.New("order already assigned to another driver")
	ErrForbidden         = errors.New("forbidden")
)

type Service struct {
	store   *Store
	catalog *catalog.Store
	pricing config.PricingConfig
}

func NewService(store *Store, catalogStore *catalog.Store, pricing config.PricingConfig) *Service {
	return &Service{store: store, catalog: catalogStore, pricing: pricing}
}

type ItemInput struct {
	ProductID types.ID
	Quantity  int
}

type CreateCommand struct {
	CustomerID    types.ID
	Items         []ItemInput
	Address       string
	Dropoff       types.Point
	PaymentMethod string
	TipCents      int64
	Instructions  string
	DistanceKm    float64 // external input from the distance provider
}

type TransitionCommand struct {
	OrderID   types.ID
	To        Status
	Note      string
	ActorType string
	ActorID   *types.ID
}

type CancelCommand struct {
	OrderID    types.ID
	CustomerID types.ID
	Reason     string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || len(cmd.Items) == 0 || cmd.Address == "" || cmd.TipCents < 0 {
		return nil, ErrValidation
	}
	ids := make([]types.ID, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		if it.Quantity <= 0 {
			return nil, ErrValidation
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.catalog.GetActive(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		p := products[it.ProductID]
		items = append(items, LineItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}

	totals := Quote(items, cmd.TipCents, cmd.DistanceKm, s.pricing)
	now := time.Now()
	eta := now.Add(estimatedDeliveryWindow)

	o := &Order{
		ID:            types.ID(uuid.NewString()),
		Number:        newOrderNumber(now),
		CustomerID:    cmd.CustomerID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		DeliveryFee:   totals.DeliveryFee,
		Tip:           totals.Tip,
		Total:         totals.Total,
		Address:       cmd.Address,
		Dropoff:       cmd.Dropoff,
		DistanceKm:    cmd.DistanceKm,
		Status:        StatusPending,
		StatusVersion: 0,
		PaymentStatus: PaymentPending,
		PaymentMethod: cmd.PaymentMethod,
		Instructions:  cmd.Instructions,
		CreatedAt:     now,
		EstimatedAt:   &eta,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

const estimatedDeliveryWindow = 45 * time.Minute

// Transition moves the order along the state machine. Callers are expected
// to have authorized the actor already; only state legality is checked here.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, cmd.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, cmd.To)
	}
	var ok bool
	if cmd.To == StatusCancelled {
		// A cancel through the generic path (admin or driver) restores
		// stock exactly like the customer cancel path does.
		ok, err = s.store.Cancel(ctx, o, cmd.Note, cmd.ActorType, cmd.ActorID)
	} else {
		ok, err = s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To, o.StatusVersion, cmd.Note, cmd.ActorType, cmd.ActorID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, o.ID)
}

// Accept binds a driver on the self-accept path: from the READY_FOR_PICKUP
// pool, or from ASSIGNED by the assigned driver only. Exactly one of several
// concurrent accepts wins; losers get ErrAlreadyAssigned.
func (s *Service) Accept(ctx context.Context, orderID, driverID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil && *o.DriverID != driverID {
		return nil, ErrAlreadyAssigned
	}
	if o.Status != StatusReadyForPickup && o.Status != StatusAssigned {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusAccepted)
	}
	ok, err := s.store.BindDriver(ctx, o.ID, o.Status, StatusAccepted, o.StatusVersion, driverID, "", "driver")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loserError(ctx, orderID, driverID)
	}
	return s.store.Get(ctx, o.ID)
}

// Assign binds a driver on the admin-initiated path, READY_FOR_PICKUP → ASSIGNED.
func (s *Service) Assign(ctx context.Context, orderID, driverID types.ID, adminID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil && *o.DriverID != driverID {
		return nil, ErrAlreadyAssigned
	}
	if !CanTransition(o.Status, StatusAssigned) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusAssigned)
	}
	ok, err := s.store.BindDriver(ctx, o.ID, o.Status, StatusAssigned, o.StatusVersion, driverID, "assigned by "+string(adminID), "admin")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loserError(ctx, orderID, driverID)
	}
	return s.store.Get(ctx, o.ID)
}

// loserError distinguishes "another driver is bound" from a generic version
// race after a failed bind CAS.
func (s *Service) loserError(ctx context.Context, orderID, driverID types.ID) error {
	cur, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if cur.DriverID != nil && *cur.DriverID != driverID {
		return ErrAlreadyAssigned
	}
	return ErrConflict
}

// Cancel is the customer-only path. Forbidden once the driver has picked the
// order up; on success stock is restored and history appended.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != cmd.CustomerID {
		return nil, ErrForbidden
	}
	if !CancellableByCustomer(o.Status) {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, o.Status)
	}
	ok, err := s.store.Cancel(ctx, o, cmd.Reason, "customer", &cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, o.ID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id types.ID) ([]HistoryEntry, error) {
	return s.store.History(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	return s.store.List(ctx, f)
}

func (s *Service) ListActiveByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.store.ListActiveByDriver(ctx, driverID)
}

// newOrderNumber builds the human-readable order number shown to customers
// and operators, e.g. LL-20260831-9F2C41.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("LL-%s-%s", now.Format("20060102"), suffix)
}
