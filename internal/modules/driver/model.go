// README: Driver profile and location definitions.
package driver

import (
	"errors"

	"leafline/internal/types"
)

var ErrNotFound = errors.New("driver not found")

type Driver struct {
	ID              types.ID
	UserID          types.ID
	Vehicle         string
	Approved        bool
	Online          bool
	Available       bool // false while mid-delivery; independent of Online
	Location        *Location
	Rating          float64
	TotalDeliveries int
	TotalEarnings   types.Money
	PendingEarnings types.Money
}

// Location carries the client-side capture timestamp in milliseconds; it is
// the ordering key for discarding stale updates.
type Location struct {
	Point   types.Point
	Heading *float64
	Speed   *float64
	TsMs    int64
}

// Valid reports whether the update is structurally usable.
func (l Location) Valid() bool {
	if l.TsMs <= 0 {
		return false
	}
	if l.Point.Lat < -90 || l.Point.Lat > 90 {
		return false
	}
	if l.Point.Lng < -180 || l.Point.Lng > 180 {
		return false
	}
	return true
}
