// README: Product catalog records consumed by order creation.
package catalog

import (
	"errors"

	"leafline/internal/types"
)

var (
	ErrInvalidItem       = errors.New("product missing or inactive")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID     types.ID
	Name   string
	Price  types.Money
	Stock  int
	Active bool
}
