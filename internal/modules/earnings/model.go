// README: Earning rows and pay computation.
package earnings

import (
	"math"
	"time"

	"leafline/internal/types"
)

type Type string

const (
	TypeBase    Type = "base"
	TypeMileage Type = "mileage"
	TypeTip     Type = "tip"
)

// Earning is a single accrual row; never edited after insert.
type Earning struct {
	ID        types.ID
	DriverID  types.ID
	OrderID   types.ID
	Type      Type
	Amount    types.Money
	CreatedAt time.Time
}

// Breakdown is the pay for one completed delivery.
type Breakdown struct {
	Base    int64
	Mileage int64
	Tip     int64
}

func (b Breakdown) Total() int64 {
	return b.Base + b.Mileage + b.Tip
}

// ComputePay prices a completed delivery. Distance is an external input.
func ComputePay(basePayCents, perMileCents int64, distanceMiles float64, tipCents int64) Breakdown {
	return Breakdown{
		Base:    basePayCents,
		Mileage: int64(math.Round(distanceMiles * float64(perMileCents))),
		Tip:     tipCents,
	}
}
