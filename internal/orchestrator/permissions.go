// README: Single permission check reused by every command instead of per-route role branching.
package orchestrator

import (
	"leafline/internal/modules/order"
	"leafline/internal/types"
)

type action string

const (
	actionView         action = "view"
	actionUpdateStatus action = "update_status"
	actionCancel       action = "cancel"
	actionAssign       action = "assign"
)

// canAct decides whether the actor may perform the action on the order.
// Operators can see and steer everything; customers are limited to their
// own orders (view + cancel); drivers to orders bound to them.
func canAct(actor types.Actor, o *order.Order, a action) bool {
	if actor.Role.IsOperator() {
		return true
	}
	switch a {
	case actionView:
		switch actor.Role {
		case types.RoleCustomer:
			return o.CustomerID == actor.ID
		case types.RoleDriver:
			return o.DriverID != nil && *o.DriverID == actor.ID
		}
	case actionUpdateStatus:
		return actor.Role == types.RoleDriver && o.DriverID != nil && *o.DriverID == actor.ID
	case actionCancel:
		return actor.Role == types.RoleCustomer && o.CustomerID == actor.ID
	case actionAssign:
		return false
	}
	return false
}
