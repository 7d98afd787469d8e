// README: Common value types shared across modules.
package types

// ID is an opaque identifier for orders, actors, and products.
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Money is an amount in integer cents.
type Money struct {
	Amount   int64
	Currency string
}

func Cents(n int64) Money {
	return Money{Amount: n, Currency: "USD"}
}

// Role is the authenticated actor's role as carried by the identity service.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsOperator reports whether the role has operator-level access.
func (r Role) IsOperator() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is a resolved identity: who is issuing a command, and as what.
type Actor struct {
	ID   ID
	Role Role
}
