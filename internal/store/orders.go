package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/google/uuid"
)

var orderOrderColumns = map[string]string{
	"order_date": "o.ordered_at",
	"total":      "o.total_cents",
}

// CreateOrder verifies the customer and products, computes the total from
// the current product prices, and inserts the order with its items in one
// transaction. Duplicate product IDs count once. Any unknown product
// aborts the whole order.
func (s *Store) CreateOrder(ctx context.Context, customerID uuid.UUID, productIDs []uuid.UUID) (crm.Order, error) {
	o := crm.Order{CustomerID: customerID, ProductIDs: dedupe(productIDs)}
	if err := crm.ValidateOrder(o); err != nil {
		return crm.Order{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return crm.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE id = ?`, customerID.String()).Scan(&exists)
	if err != nil {
		return crm.Order{}, fmt.Errorf("check customer: %w", err)
	}
	if exists == 0 {
		return crm.Order{}, crm.ErrUnknownCustomer
	}

	type item struct {
		id    uuid.UUID
		price crm.Cents
	}
	items := make([]item, 0, len(o.ProductIDs))
	for _, pid := range o.ProductIDs {
		var price int64
		err := tx.QueryRowContext(ctx,
			`SELECT price_cents FROM products WHERE id = ?`, pid.String()).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Order{}, fmt.Errorf("%w: %s", crm.ErrUnknownProduct, pid)
		}
		if err != nil {
			return crm.Order{}, fmt.Errorf("load product %s: %w", pid, err)
		}
		items = append(items, item{id: pid, price: crm.Cents(price)})
		o.Total += crm.Cents(price)
	}

	o.ID = uuid.New()
	o.OrderedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, total_cents, ordered_at) VALUES (?, ?, ?, ?)`,
		o.ID.String(), customerID.String(), int64(o.Total), o.OrderedAt.Format(time.RFC3339))
	if err != nil {
		return crm.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, price_cents) VALUES (?, ?, ?)`,
			o.ID.String(), it.id.String(), int64(it.price))
		if err != nil {
			return crm.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return crm.Order{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

// GetOrder retrieves an order and its product IDs.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (crm.Order, error) {
	var (
		o          crm.Order
		rawID      string
		rawCust    string
		total      int64
		orderedRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, total_cents, ordered_at FROM orders WHERE id = ?`, id.String(),
	).Scan(&rawID, &rawCust, &total, &orderedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Order{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := fillOrder(&o, rawID, rawCust, total, orderedRaw); err != nil {
		return crm.Order{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id FROM order_items WHERE order_id = ? ORDER BY product_id`, id.String())
	if err != nil {
		return crm.Order{}, fmt.Errorf("get order items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return crm.Order{}, err
		}
		pid, err := uuid.Parse(raw)
		if err != nil {
			return crm.Order{}, fmt.Errorf("parse product id %q: %w", raw, err)
		}
		o.ProductIDs = append(o.ProductIDs, pid)
	}
	return o, rows.Err()
}

// ListOrders returns a filtered, ordered, paginated order listing with the
// total match count. Product IDs are loaded per order.
func (s *Store) ListOrders(ctx context.Context, f crm.OrderFilter) ([]crm.Order, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.CustomerName != "" {
		where = append(where, "c.name LIKE ? COLLATE NOCASE ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.CustomerName)+"%")
	}
	if f.ProductName != "" {
		where = append(where, `o.id IN (
			SELECT oi.order_id FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE p.name LIKE ? COLLATE NOCASE ESCAPE '\')`)
		args = append(args, "%"+escapeLike(f.ProductName)+"%")
	}
	if f.ProductID != nil {
		where = append(where, `o.id IN (SELECT order_id FROM order_items WHERE product_id = ?)`)
		args = append(args, f.ProductID.String())
	}
	if f.TotalMin != nil {
		where = append(where, "o.total_cents >= ?")
		args = append(args, int64(*f.TotalMin))
	}
	if f.TotalMax != nil {
		where = append(where, "o.total_cents <= ?")
		args = append(args, int64(*f.TotalMax))
	}
	if f.Since != nil {
		where = append(where, "o.ordered_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	if f.Until != nil {
		where = append(where, "o.ordered_at <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339))
	}

	column, direction, err := crm.ParseOrderBy(f.OrderBy, "-order_date", orderOrderColumns)
	if err != nil {
		return nil, 0, err
	}

	whereClause := strings.Join(where, " AND ")
	fromClause := "FROM orders o JOIN customers c ON c.id = o.customer_id WHERE " + whereClause

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+fromClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page := f.Page.Normalize()
	query := fmt.Sprintf(
		"SELECT o.id, o.customer_id, o.total_cents, o.ordered_at %s ORDER BY %s %s LIMIT ? OFFSET ?",
		fromClause, column, direction)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Order
	for rows.Next() {
		var (
			o          crm.Order
			rawID      string
			rawCust    string
			totalCents int64
			orderedRaw string
		)
		if err := rows.Scan(&rawID, &rawCust, &totalCents, &orderedRaw); err != nil {
			return nil, 0, err
		}
		if err := fillOrder(&o, rawID, rawCust, totalCents, orderedRaw); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		itemRows, err := s.db.QueryContext(ctx,
			`SELECT product_id FROM order_items WHERE order_id = ? ORDER BY product_id`, out[i].ID.String())
		if err != nil {
			return nil, 0, fmt.Errorf("order items: %w", err)
		}
		for itemRows.Next() {
			var raw string
			if err := itemRows.Scan(&raw); err != nil {
				_ = itemRows.Close()
				return nil, 0, err
			}
			pid, err := uuid.Parse(raw)
			if err != nil {
				_ = itemRows.Close()
				return nil, 0, fmt.Errorf("parse product id %q: %w", raw, err)
			}
			out[i].ProductIDs = append(out[i].ProductIDs, pid)
		}
		if err := itemRows.Err(); err != nil {
			_ = itemRows.Close()
			return nil, 0, err
		}
		_ = itemRows.Close()
	}
	return out, total, nil
}

// RecentOrders returns id, customer email and date of all orders placed
// since the given time, newest first. Feeds the reminder task.
func (s *Store) RecentOrders(ctx context.Context, since time.Time) ([]crm.OrderReminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, c.email, o.ordered_at
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.ordered_at >= ?
		ORDER BY o.ordered_at DESC`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crm.OrderReminder
	for rows.Next() {
		var (
			r          crm.OrderReminder
			rawID      string
			orderedRaw string
		)
		if err := rows.Scan(&rawID, &r.CustomerEmail, &orderedRaw); err != nil {
			return nil, err
		}
		if r.OrderID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse order id %q: %w", rawID, err)
		}
		if r.OrderedAt, err = time.Parse(time.RFC3339, orderedRaw); err != nil {
			return nil, fmt.Errorf("parse order date %q: %w", orderedRaw, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func fillOrder(o *crm.Order, rawID, rawCust string, total int64, orderedRaw string) error {
	var err error
	if o.ID, err = uuid.Parse(rawID); err != nil {
		return fmt.Errorf("parse order id %q: %w", rawID, err)
	}
	if o.CustomerID, err = uuid.Parse(rawCust); err != nil {
		return fmt.Errorf("parse customer id %q: %w", rawCust, err)
	}
	o.Total = crm.Cents(total)
	if o.OrderedAt, err = time.Parse(time.RFC3339, orderedRaw); err != nil {
		return fmt.Errorf("parse order date %q: %w", orderedRaw, err)
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
