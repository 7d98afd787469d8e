// README: Earnings store: idempotent accrual plus rolling summaries, backed by PostgreSQL.
package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"leafline/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Accrue writes the three earning rows and updates the driver's running
// totals in one transaction. A second call for the same (driver, order)
// pair is a no-op and returns credited=false, so a replayed DELIVERED
// transition can never double-credit.
func (s *Store) Accrue(ctx context.Context, driverID, orderID types.ID, b Breakdown) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM earnings WHERE driver_id = $1 AND order_id = $2
        )`, string(driverID), string(orderID),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := time.Now()
	rows := []struct {
		t      Type
		amount int64
	}{
		{TypeBase, b.Base},
		{TypeMileage, b.Mileage},
		{TypeTip, b.Tip},
	}
	for _, r := range rows {
		_, err = tx.Exec(ctx, `
            INSERT INTO earnings (id, driver_id, order_id, type, amount, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), string(driverID), string(orderID), string(r.t), r.amount, now,
		)
		if err != nil {
			return false, err
		}
	}

	_, err = tx.Exec(ctx, `
        UPDATE drivers
        SET total_earnings = total_earnings + $2,
            pending_earnings = pending_earnings + $2,
            total_deliveries = total_deliveries + 1,
            available = TRUE
        WHERE id = $1`,
		string(driverID), b.Total(),
	)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ListByOrder returns the accrual rows for one (driver, order) pair.
func (s *Store) ListByOrder(ctx context.Context, driverID, orderID types.ID) ([]Earning, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, driver_id, order_id, type, amount, created_at
        FROM earnings
        WHERE driver_id = $1 AND order_id = $2
        ORDER BY type`, string(driverID), string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Earning
	for rows.Next() {
		var e Earning
		if err := rows.Scan(&e.ID, &e.DriverID, &e.OrderID, &e.Type, &e.Amount.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount.Currency = "USD"
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumSince returns the driver's accrued pay within [since, now].
func (s *Store) SumSince(ctx context.Context, driverID types.ID, since time.Time) (types.Money, error) {
	var total int64
	err := s.db.QueryRow(ctx, `
        SELECT COALESCE(SUM(amount), 0)
        FROM earnings
        WHERE driver_id = $1 AND created_at >= $2`,
		string(driverID), since,
	).Scan(&total)
	if err != nil {
		return types.Money{}, err
	}
	return types.Cents(total), nil
}
