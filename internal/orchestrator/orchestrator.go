// README: Dispatch orchestrator: the command façade tying orders, dispatch, earnings, realtime, and notifications together.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"leafline/internal/config"
	"leafline/internal/logger"
	"leafline/internal/maps"
	"leafline/internal/modules/catalog"
	"leafline/internal/modules/dispatch"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/earnings"
	"leafline/internal/modules/order"
	"leafline/internal/notify"
	"leafline/internal/realtime"
	"leafline/internal/types"
)

// ErrInternal is surfaced when a persistence failure survives retries. The
// underlying cause is logged, never returned to the client.
var ErrInternal = errors.New("internal error")

const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// OrderLedger is the slice of the order service the orchestrator drives.
type OrderLedger interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd order.CancelCommand) (*order.Order, error)
	ListActiveByDriver(ctx context.Context, driverID types.ID) ([]*order.Order, error)
}

// Matcher is the slice of the dispatch service the orchestrator drives.
type Matcher interface {
	Assign(ctx context.Context, orderID, driverID, adminID types.ID) (*order.Order, error)
	Accept(ctx context.Context, orderID, driverID types.ID) (*order.Order, error)
}

// DriverPresence is the slice of the driver service the orchestrator drives.
type DriverPresence interface {
	SetOnline(ctx context.Context, id types.ID, online bool, p *types.Point) error
	SetAvailable(ctx context.Context, id types.ID, available bool) error
	ReportLocation(ctx context.Context, id types.ID, loc driver.Location) (bool, error)
}

// EarningsLedger credits the delivering driver exactly once per order.
type EarningsLedger interface {
	AccrueForDelivery(ctx context.Context, o *order.Order) (bool, error)
}

// Publisher fans an event out to a topic's live sessions.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev realtime.Event)
}

// Presence answers whether an actor has a live realtime session, which
// decides between the socket path and the push-notification path.
type Presence interface {
	IsConnected(actorID types.ID) bool
}

type Orchestrator struct {
	orders   OrderLedger
	matcher  Matcher
	drivers  DriverPresence
	earnings EarningsLedger
	events   Publisher
	presence Presence
	notifier notify.Notifier
	distance maps.DistanceProvider
	origin   types.Point
}

func New(
	orders OrderLedger,
	matcher Matcher,
	drivers DriverPresence,
	earnings EarningsLedger,
	events Publisher,
	presence Presence,
	notifier notify.Notifier,
	distance maps.DistanceProvider,
	cfg config.Config,
) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		matcher:  matcher,
		drivers:  drivers,
		earnings: earnings,
		events:   events,
		presence: presence,
		notifier: notifier,
		distance: distance,
		origin:   types.Point{Lat: cfg.Store.Lat, Lng: cfg.Store.Lng},
	}
}

type PlaceOrderCommand struct {
	Items         []order.ItemInput
	Address       string
	Dropoff       *types.Point
	PaymentMethod string
	TipCents      int64
	Instructions  string
}

// PlaceOrder creates an order for the calling customer and announces it to
// the driver pool and the admin console.
func (oc *Orchestrator) PlaceOrder(ctx context.Context, actor types.Actor, cmd PlaceOrderCommand) (*order.Order, error) {
	if actor.Role != types.RoleCustomer {
		return nil, order.ErrForbidden
	}

	create := order.CreateCommand{
		CustomerID:    actor.ID,
		Items:         cmd.Items,
		Address:       cmd.Address,
		PaymentMethod: cmd.PaymentMethod,
		TipCents:      cmd.TipCents,
		Instructions:  cmd.Instructions,
	}
	if cmd.Dropoff != nil {
		create.Dropoff = *cmd.Dropoff
		create.DistanceKm = oc.deliveryDistance(ctx, *cmd.Dropoff)
	}

	var placed *order.Order
	err := oc.withRetry(ctx, "place order", func() error {
		var err error
		placed, err = oc.orders.Create(ctx, create)
		return err
	})
	if err != nil {
		return nil, err
	}

	oc.events.Publish(ctx, realtime.TopicDrivers, realtime.NewEvent("new_order_available", map[string]any{
		"order_id":   placed.ID,
		"number":     placed.Number,
		"item_count": len(placed.Items),
		"total":      placed.Total.Amount,
		"address":    placed.Address,
	}))
	oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("new_order", map[string]any{
		"order_id":    placed.ID,
		"number":      placed.Number,
		"customer_id": placed.CustomerID,
		"total":       placed.Total.Amount,
	}))
	return placed, nil
}

// ListOrders is visibility-scoped: customers see their own orders, drivers
// the orders bound to them, operators everything.
func (oc *Orchestrator) ListOrders(ctx context.Context, actor types.Actor, status order.Status, page, limit int) ([]*order.Order, error) {
	f := order.ListFilter{Status: status, Page: page, Limit: limit}
	switch {
	case actor.Role == types.RoleCustomer:
		f.CustomerID = actor.ID
	case actor.Role == types.RoleDriver:
		f.DriverID = actor.ID
	case actor.Role.IsOperator():
	default:
		return nil, order.ErrForbidden
	}
	return oc.orders.List(ctx, f)
}

func (oc *Orchestrator) GetOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	o, err := oc.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, o, actionView) {
		return nil, order.ErrForbidden
	}
	return o, nil
}

// UpdateStatus moves an order along the state machine. Operators may drive
// any order; a driver only the order bound to them. DELIVERED additionally
// credits the driver's earnings, exactly once.
func (oc *Orchestrator) UpdateStatus(ctx context.Context, actor types.Actor, orderID types.ID, to order.Status, note string) (*order.Order, error) {
	cur, err := oc.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, cur, actionUpdateStatus) {
		return nil, order.ErrForbidden
	}

	var updated *order.Order
	err = oc.withRetry(ctx, "update status", func() error {
		var err error
		updated, err = oc.orders.Transition(ctx, order.TransitionCommand{
			OrderID:   orderID,
			To:        to,
			Note:      note,
			ActorType: string(actor.Role),
			ActorID:   &actor.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == order.StatusDelivered {
		oc.creditDelivery(ctx, updated)
	}
	if updated.Status == order.StatusCancelled && updated.DriverID != nil {
		oc.releaseDriver(ctx, *updated.DriverID)
	}
	oc.announceStatus(ctx, updated)
	return updated, nil
}

// CancelOrder is the customer-only cancellation path.
func (oc *Orchestrator) CancelOrder(ctx context.Context, actor types.Actor, orderID types.ID, reason string) error {
	cur, err := oc.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !canAct(actor, cur, actionCancel) {
		return order.ErrForbidden
	}

	var cancelled *order.Order
	err = oc.withRetry(ctx, "cancel order", func() error {
		var err error
		cancelled, err = oc.orders.Cancel(ctx, order.CancelCommand{
			OrderID:    orderID,
			CustomerID: actor.ID,
			Reason:     reason,
		})
		return err
	})
	if err != nil {
		return err
	}

	if cancelled.DriverID != nil {
		oc.releaseDriver(ctx, *cancelled.DriverID)
		oc.deliver(ctx, *cancelled.DriverID, "order_cancelled", "Delivery cancelled",
			fmt.Sprintf("Order %s was cancelled by the customer.", cancelled.Number),
			map[string]any{"order_id": cancelled.ID, "number": cancelled.Number})
	}
	oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("order_cancelled", map[string]any{
		"order_id": cancelled.ID,
		"number":   cancelled.Number,
		"reason":   reason,
	}))
	return nil
}

// AssignDriver is the admin direct-assignment path.
func (oc *Orchestrator) AssignDriver(ctx context.Context, actor types.Actor, orderID, driverID types.ID) (*order.Order, error) {
	if !actor.Role.IsOperator() {
		return nil, order.ErrForbidden
	}

	var assigned *order.Order
	err := oc.withRetry(ctx, "assign driver", func() error {
		var err error
		assigned, err = oc.matcher.Assign(ctx, orderID, driverID, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	oc.announceDriverBound(ctx, assigned)
	return assigned, nil
}

// AcceptOrder is the driver self-accept path. Exactly one of several
// concurrent accepts wins.
func (oc *Orchestrator) AcceptOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error) {
	if actor.Role != types.RoleDriver {
		return nil, order.ErrForbidden
	}

	var accepted *order.Order
	err := oc.withRetry(ctx, "accept order", func() error {
		var err error
		accepted, err = oc.matcher.Accept(ctx, orderID, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	oc.announceDriverBound(ctx, accepted)
	return accepted, nil
}

// ReportDriverLocation applies a location ping and relays the position to
// the customer of every delivery the driver is currently running. Stale or
// out-of-order pings are discarded silently.
func (oc *Orchestrator) ReportDriverLocation(ctx context.Context, actor types.Actor, loc driver.Location) error {
	if actor.Role != types.RoleDriver {
		return order.ErrForbidden
	}

	applied, err := oc.drivers.ReportLocation(ctx, actor.ID, loc)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	active, err := oc.orders.ListActiveByDriver(ctx, actor.ID)
	if err != nil {
		logger.Log.Warn("location fan-out skipped", zap.String("driver_id", string(actor.ID)), zap.Error(err))
		return nil
	}
	for _, o := range active {
		oc.events.Publish(ctx, realtime.TopicUser(o.CustomerID), realtime.NewEvent("driver_location", map[string]any{
			"order_id": o.ID,
			"lat":      loc.Point.Lat,
			"lng":      loc.Point.Lng,
			"heading":  loc.Heading,
			"speed":    loc.Speed,
		}))
	}
	oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("driver_location", map[string]any{
		"driver_id": actor.ID,
		"lat":       loc.Point.Lat,
		"lng":       loc.Point.Lng,
	}))
	return nil
}

// SetDriverOnline flips the driver's presence flag, optionally seeding the
// last-known position when going online.
func (oc *Orchestrator) SetDriverOnline(ctx context.Context, actor types.Actor, online bool, p *types.Point) error {
	if actor.Role != types.RoleDriver {
		return order.ErrForbidden
	}
	return oc.withRetry(ctx, "set driver online", func() error {
		return oc.drivers.SetOnline(ctx, actor.ID, online, p)
	})
}

// creditDelivery accrues earnings after a DELIVERED transition. The
// transition already committed, so a failure here must not surface to the
// caller; transient store errors are retried, and exhaustion is flagged to
// the admin console for reconciliation since the driver stays uncredited
// until someone replays it.
func (oc *Orchestrator) creditDelivery(ctx context.Context, o *order.Order) {
	var credited bool
	err := oc.withRetry(ctx, "credit delivery", func() error {
		var err error
		credited, err = oc.earnings.AccrueForDelivery(ctx, o)
		return err
	})
	if err != nil {
		logger.Log.Error("earnings accrual unrecovered",
			zap.String("order_id", string(o.ID)),
			zap.Error(err))
		data := map[string]any{"order_id": o.ID, "number": o.Number}
		if o.DriverID != nil {
			data["driver_id"] = *o.DriverID
		}
		oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("earnings_accrual_failed", data))
		return
	}
	if !credited {
		logger.Log.Info("earnings already credited", zap.String("order_id", string(o.ID)))
	}
}

// releaseDriver returns a driver to the dispatch pool after the delivery
// bound to them was cancelled. Failures are logged only; the cancel itself
// already committed and the driver can still toggle availability manually.
func (oc *Orchestrator) releaseDriver(ctx context.Context, driverID types.ID) {
	if err := oc.drivers.SetAvailable(ctx, driverID, true); err != nil {
		logger.Log.Warn("driver release failed",
			zap.String("driver_id", string(driverID)),
			zap.Error(err))
	}
}

// announceStatus tells the customer and the admins about a committed status
// change, over the socket when connected and by push otherwise.
func (oc *Orchestrator) announceStatus(ctx context.Context, o *order.Order) {
	msg := StatusMessage(o.Status)
	oc.deliver(ctx, o.CustomerID, "order_status", "Order "+o.Number, msg, map[string]any{
		"order_id": o.ID,
		"number":   o.Number,
		"status":   o.Status,
		"message":  msg,
	})
	oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("order_status", map[string]any{
		"order_id": o.ID,
		"number":   o.Number,
		"status":   o.Status,
	}))
}

func (oc *Orchestrator) announceDriverBound(ctx context.Context, o *order.Order) {
	msg := StatusMessage(o.Status)
	data := map[string]any{
		"order_id": o.ID,
		"number":   o.Number,
		"status":   o.Status,
		"message":  msg,
	}
	if o.DriverID != nil {
		data["driver_id"] = *o.DriverID
	}
	oc.deliver(ctx, o.CustomerID, "driver_assigned", "Order "+o.Number, msg, data)
	oc.events.Publish(ctx, realtime.TopicAdmins, realtime.NewEvent("driver_assigned", data))
}

// deliver sends one semantic event to one actor: realtime when a session is
// live, push notification otherwise. Notification failures never propagate.
func (oc *Orchestrator) deliver(ctx context.Context, actorID types.ID, eventType, title, body string, data map[string]any) {
	if oc.presence.IsConnected(actorID) {
		oc.events.Publish(ctx, realtime.TopicUser(actorID), realtime.NewEvent(eventType, data))
		return
	}
	payload := make(map[string]string, len(data))
	for k, v := range data {
		payload[k] = fmt.Sprint(v)
	}
	if err := oc.notifier.Send(ctx, actorID, title, body, payload); err != nil {
		logger.Log.Warn("notification failed",
			zap.String("actor", string(actorID)),
			zap.String("event", eventType),
			zap.Error(err))
	}
}

// deliveryDistance resolves the road distance from the store to the dropoff.
// A provider failure falls back to the haversine estimate.
func (oc *Orchestrator) deliveryDistance(ctx context.Context, dropoff types.Point) float64 {
	km, err := oc.distance.DistanceKm(ctx, oc.origin, dropoff)
	if err != nil {
		logger.Log.Warn("distance provider failed, using estimate", zap.Error(err))
		km, _ = maps.HaversineProvider{}.DistanceKm(ctx, oc.origin, dropoff)
	}
	return km
}

// withRetry runs fn up to retryAttempts times, retrying only transient
// store failures. Business-rule errors surface verbatim on the first hit.
func (oc *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	var last error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if isBusinessErr(err) {
			return err
		}
		last = err
		logger.Log.Warn("transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	logger.Log.Error("operation failed after retries", zap.String("op", op), zap.Error(last))
	return ErrInternal
}

// isBusinessErr reports whether the error is a business-rule rejection that
// must surface to the caller rather than be retried or masked.
func isBusinessErr(err error) bool {
	for _, sentinel := range []error{
		order.ErrValidation,
		order.ErrNotFound,
		order.ErrForbidden,
		order.ErrInvalidTransition,
		order.ErrAlreadyAssigned,
		catalog.ErrInvalidItem,
		catalog.ErrInsufficientStock,
		dispatch.ErrDriverUnavailable,
		driver.ErrNotFound,
		earnings.ErrNotCreditable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
