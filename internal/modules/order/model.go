// README: Order aggregate, status machine, and history definitions.
package order

import (
	"time"

	"leafline/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusAssigned       Status = "assigned"
	StatusAccepted       Status = "accepted"
	StatusPickedUp       Status = "picked_up"
	StatusInTransit      Status = "in_transit"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

type LineItem struct {
	ProductID types.ID
	Name      string      // snapshot at order time
	UnitPrice types.Money // snapshot at order time
	Quantity  int
}

type Order struct {
	ID            types.ID
	Number        string
	CustomerID    types.ID
	DriverID      *types.ID
	Items         []LineItem
	Subtotal      types.Money
	Tax           types.Money
	DeliveryFee   types.Money
	Tip           types.Money
	Total         types.Money
	Address       string
	Dropoff       types.Point
	DistanceKm    float64 // external input, snapshotted at creation
	Status        Status
	StatusVersion int
	PaymentStatus PaymentStatus
	PaymentMethod string
	Instructions  string
	CreatedAt     time.Time
	EstimatedAt   *time.Time
	DeliveredAt   *time.Time
}

// HistoryEntry is one append-only row of the order's status history.
type HistoryEntry struct {
	ID        int64
	OrderID   types.ID
	From      Status
	To        Status
	Note      string
	ActorType string
	ActorID   *types.ID
	CreatedAt time.Time
}

// AllowedTransitions represents the order state flow as code. CANCELLED is
// reachable from every non-terminal state; the customer-facing cancellation
// window is narrower and enforced by CancellableByCustomer.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusAssigned, StatusAccepted, StatusCancelled},
	StatusAssigned:       {StatusAccepted, StatusCancelled},
	StatusAccepted:       {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusInTransit, StatusCancelled},
	StatusInTransit:      {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CancellableByCustomer reports whether the owning customer may still cancel.
// Once the driver has physical possession (PICKED_UP and later) the answer is no.
func CancellableByCustomer(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusAssigned, StatusAccepted:
		return true
	}
	return false
}

// ActiveDeliveryStatuses are the states during which the assigned driver's
// location is relayed to the customer.
var ActiveDeliveryStatuses = []Status{StatusAccepted, StatusPickedUp, StatusInTransit}
