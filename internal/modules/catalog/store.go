// README: Product store backed by PostgreSQL with conditional stock updates.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leafline/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Product, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, price, stock, active
        FROM products
        WHERE id = $1`, string(id),
	)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price.Amount, &p.Stock, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidItem
	}
	if err != nil {
		return nil, err
	}
	p.Price.Currency = "USD"
	return &p, nil
}

// GetActive loads all referenced products; any missing or inactive id fails
// the whole lookup with ErrInvalidItem.
func (s *Store) GetActive(ctx context.Context, ids []types.ID) (map[types.ID]*Product, error) {
	out := make(map[types.ID]*Product, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, ErrInvalidItem
		}
		out[id] = p
	}
	return out, nil
}

// DecrementStock conditionally reserves stock within the caller's transaction.
// Returns ErrInsufficientStock when the product cannot cover the quantity.
func DecrementStock(ctx context.Context, tx pgx.Tx, id types.ID, qty int) error {
	tag, err := tx.Exec(ctx, `
        UPDATE products
        SET stock = stock - $1
        WHERE id = $2 AND active AND stock >= $1`,
		qty, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns reserved stock on cancellation, within the caller's transaction.
func RestoreStock(ctx context.Context, tx pgx.Tx, id types.ID, qty int) error {
	_, err := tx.Exec(ctx, `
        UPDATE products
        SET stock = stock + $1
        WHERE id = $2`,
		qty, string(id),
	)
	return err
}
