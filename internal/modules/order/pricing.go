// README: Deterministic order pricing; computed once at creation, never recomputed.
package order

import (
	"math"

	"leafline/internal/config"
	"leafline/internal/types"
)

type Totals struct {
	Subtotal    types.Money
	Tax         types.Money
	DeliveryFee types.Money
	Tip         types.Money
	Total       types.Money
}

// Quote prices an order from snapshotted line items. Tax is a fixed
// percentage of the subtotal, rounded half-up to the cent. The delivery fee
// is a flat amount plus a per-tier distance surcharge, waived entirely once
// the subtotal reaches the free-delivery threshold.
func Quote(items []LineItem, tip int64, distanceKm float64, cfg config.PricingConfig) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPrice.Amount * int64(it.Quantity)
	}

	tax := (subtotal*cfg.TaxRateBps + 5000) / 10000

	var fee int64
	if subtotal < cfg.FreeDeliveryCents {
		fee = cfg.DeliveryFeeCents + distanceSurcharge(distanceKm, cfg)
	}

	return Totals{
		Subtotal:    types.Cents(subtotal),
		Tax:         types.Cents(tax),
		DeliveryFee: types.Cents(fee),
		Tip:         types.Cents(tip),
		Total:       types.Cents(subtotal + tax + fee + tip),
	}
}

// distanceSurcharge charges per started tier beyond the free radius.
func distanceSurcharge(distanceKm float64, cfg config.PricingConfig) int64 {
	if distanceKm <= cfg.FreeRadiusKm || cfg.DistanceTierKm <= 0 {
		return 0
	}
	tiers := int64(math.Ceil((distanceKm - cfg.FreeRadiusKm) / cfg.DistanceTierKm))
	return tiers * cfg.DistanceTierCents
}
