// README: Order store backed by PostgreSQL; transitions are conditional updates with history appended in the same transaction.
package order

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leafline/internal/modules/catalog"
	"leafline/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts the order, its items, and the initial history row, and
// atomically reserves stock for every line item. Stock shortfalls roll the
// whole order back.
func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, it := range o.Items {
		if err := catalog.DecrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, number, customer_id, driver_id, subtotal, tax, delivery_fee, tip, total,
            address, dropoff_lat, dropoff_lng, distance_km,
            status, status_version, payment_status, payment_method, instructions,
            created_at, estimated_at, delivered_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13,
            $14, $15, $16, $17, $18,
            $19, $20, $21
        )`,
		string(o.ID), o.Number, string(o.CustomerID), toStringPtr(o.DriverID),
		o.Subtotal.Amount, o.Tax.Amount, o.DeliveryFee.Amount, o.Tip.Amount, o.Total.Amount,
		o.Address, o.Dropoff.Lat, o.Dropoff.Lng, o.DistanceKm,
		string(o.Status), o.StatusVersion, string(o.PaymentStatus), o.PaymentMethod, o.Instructions,
		o.CreatedAt, o.EstimatedAt, o.DeliveredAt,
	)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
            INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
            VALUES ($1, $2, $3, $4, $5)`,
			string(o.ID), string(it.ProductID), it.Name, it.UnitPrice.Amount, it.Quantity,
		)
		if err != nil {
			return err
		}
	}

	if err := appendHistory(ctx, tx, &HistoryEntry{
		OrderID:   o.ID,
		From:      StatusNone,
		To:        o.Status,
		ActorType: "customer",
		ActorID:   &o.CustomerID,
		CreatedAt: o.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, selectOrder+` WHERE id = $1`, string(id)))
	if err != nil {
		return nil, err
	}
	o.Items, err = s.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

const selectOrder = `
    SELECT id, number, customer_id, driver_id, subtotal, tax, delivery_fee, tip, total,
           address, dropoff_lat, dropoff_lng, distance_km,
           status, status_version, payment_status, payment_method, instructions,
           created_at, estimated_at, delivered_at
    FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var driverID sql.NullString
	var estimatedAt, deliveredAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &driverID,
		&o.Subtotal.Amount, &o.Tax.Amount, &o.DeliveryFee.Amount, &o.Tip.Amount, &o.Total.Amount,
		&o.Address, &o.Dropoff.Lat, &o.Dropoff.Lng, &o.DistanceKm,
		&o.Status, &o.StatusVersion, &o.PaymentStatus, &o.PaymentMethod, &o.Instructions,
		&o.CreatedAt, &estimatedAt, &deliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	o.EstimatedAt = toTimePtr(estimatedAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	for _, m := range []*types.Money{&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Tip, &o.Total} {
		m.Currency = "USD"
	}
	return &o, nil
}

func (s *Store) items(ctx context.Context, orderID types.ID) ([]LineItem, error) {
	rows, err := s.db.Query(ctx, `
        SELECT product_id, name, unit_price, quantity
        FROM order_items
        WHERE order_id = $1
        ORDER BY product_id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPrice.Amount, &it.Quantity); err != nil {
			return nil, err
		}
		it.UnitPrice.Currency = "USD"
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus applies from→to with a compare-and-swap on (status,
// status_version) and appends the history row in the same transaction.
// Returns false when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, note, actorType string, actorID *types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END
        WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if err := appendHistory(ctx, tx, &HistoryEntry{
		OrderID: id, From: from, To: to, Note: note,
		ActorType: actorType, ActorID: actorID, CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// BindDriver transitions from→to while binding driverID, guarded so a
// different already-bound driver makes the update miss. Used by assign and
// accept; exactly one concurrent caller can win.
func (s *Store) BindDriver(ctx context.Context, id types.ID, from, to Status, version int, driverID types.ID, note, actorType string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            driver_id = $2
        WHERE id = $3 AND status = $4 AND status_version = $5
          AND (driver_id IS NULL OR driver_id = $2)`,
		string(to), string(driverID), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	d := driverID
	if err := appendHistory(ctx, tx, &HistoryEntry{
		OrderID: id, From: from, To: to, Note: note,
		ActorType: actorType, ActorID: &d, CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Cancel sets the terminal CANCELLED status, restores stock for every line
// item, and appends history, all atomically.
func (s *Store) Cancel(ctx context.Context, o *Order, reason, actorType string, actorID *types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET status = $1, status_version = status_version + 1
        WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(StatusCancelled), string(o.ID), string(o.Status), o.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	for _, it := range o.Items {
		if err := catalog.RestoreStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return false, err
		}
	}

	if err := appendHistory(ctx, tx, &HistoryEntry{
		OrderID: o.ID, From: o.Status, To: StatusCancelled, Note: reason,
		ActorType: actorType, ActorID: actorID, CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func appendHistory(ctx context.Context, tx pgx.Tx, e *HistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO order_status_history (order_id, from_status, to_status, note, actor_type, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID), string(e.From), string(e.To), e.Note, e.ActorType, toStringPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func (s *Store) History(ctx context.Context, orderID types.ID) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, from_status, to_status, note, actor_type, actor_id, created_at
        FROM order_status_history
        WHERE order_id = $1
        ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.Note, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			a := types.ID(actorID.String)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListFilter scopes a listing query. Zero-value ID fields mean "no scope".
type ListFilter struct {
	CustomerID types.ID
	DriverID   types.ID
	Status     Status
	Page       int
	Limit      int
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	q := selectOrder + ` WHERE 1=1`
	args := []any{}
	n := 0
	add := func(clause string, v any) {
		n++
		args = append(args, v)
		q += clause + "$" + strconv.Itoa(n)
	}
	if f.CustomerID != "" {
		add(` AND customer_id = `, string(f.CustomerID))
	}
	if f.DriverID != "" {
		add(` AND driver_id = `, string(f.DriverID))
	}
	if f.Status != "" {
		add(` AND status = `, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	q += ` ORDER BY created_at DESC`
	add(` LIMIT `, limit)
	add(` OFFSET `, (page-1)*limit)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if o.Items, err = s.items(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListActiveByDriver returns the driver's orders in ACCEPTED/PICKED_UP/IN_TRANSIT,
// the states during which location pings are relayed to customers.
func (s *Store) ListActiveByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, selectOrder+`
        WHERE driver_id = $1 AND status IN ('accepted','picked_up','in_transit')
        ORDER BY created_at`, string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
