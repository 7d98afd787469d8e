// README: Handler-facing slices of the orchestrator and supporting services.
package handlers

import (
	"context"
	"time"

	"leafline/internal/modules/dispatch"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/order"
	"leafline/internal/orchestrator"
	"leafline/internal/types"
)

// Orchestrator is the command surface the HTTP handlers call into.
type Orchestrator interface {
	PlaceOrder(ctx context.Context, actor types.Actor, cmd orchestrator.PlaceOrderCommand) (*order.Order, error)
	ListOrders(ctx context.Context, actor types.Actor, status order.Status, page, limit int) ([]*order.Order, error)
	GetOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	UpdateStatus(ctx context.Context, actor types.Actor, orderID types.ID, to order.Status, note string) (*order.Order, error)
	CancelOrder(ctx context.Context, actor types.Actor, orderID types.ID, reason string) error
	AssignDriver(ctx context.Context, actor types.Actor, orderID, driverID types.ID) (*order.Order, error)
	AcceptOrder(ctx context.Context, actor types.Actor, orderID types.ID) (*order.Order, error)
	ReportDriverLocation(ctx context.Context, actor types.Actor, loc driver.Location) error
	SetDriverOnline(ctx context.Context, actor types.Actor, online bool, p *types.Point) error
}

// CandidateFinder exposes the matcher's ranked candidate search to the
// admin console.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, o *order.Order) ([]dispatch.Candidate, error)
}

// EarningsReader serves driver pay summaries.
type EarningsReader interface {
	WeeklySummary(ctx context.Context, driverID types.ID) (types.Money, error)
	MonthlySummary(ctx context.Context, driverID types.ID) (types.Money, error)
}

// TokenRegistry maintains per-actor push tokens.
type TokenRegistry interface {
	RegisterToken(ctx context.Context, actorID types.ID, token string) error
	UnregisterToken(ctx context.Context, actorID types.ID) error
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type orderView struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	CustomerID    string          `json:"customer_id"`
	DriverID      *string         `json:"driver_id,omitempty"`
	Items         []orderItemView `json:"items"`
	Subtotal      int64           `json:"subtotal"`
	Tax           int64           `json:"tax"`
	DeliveryFee   int64           `json:"delivery_fee"`
	Tip           int64           `json:"tip"`
	Total         int64           `json:"total"`
	Address       string          `json:"address"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Instructions  string          `json:"instructions,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	EstimatedAt   *time.Time      `json:"estimated_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}

func viewOrder(o *order.Order) orderView {
	v := orderView{
		ID:            string(o.ID),
		Number:        o.Number,
		CustomerID:    string(o.CustomerID),
		Subtotal:      o.Subtotal.Amount,
		Tax:           o.Tax.Amount,
		DeliveryFee:   o.DeliveryFee.Amount,
		Tip:           o.Tip.Amount,
		Total:         o.Total.Amount,
		Address:       o.Address,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Instructions:  o.Instructions,
		CreatedAt:     o.CreatedAt,
		EstimatedAt:   o.EstimatedAt,
		DeliveredAt:   o.DeliveredAt,
	}
	if o.DriverID != nil {
		id := string(*o.DriverID)
		v.DriverID = &id
	}
	v.Items = make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ProductID: string(it.ProductID),
			Name:      it.Name,
			UnitPrice: it.UnitPrice.Amount,
			Quantity:  it.Quantity,
		})
	}
	return v
}

func viewOrders(orders []*order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewOrder(o))
	}
	return out
}
