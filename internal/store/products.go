package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/google/uuid"
)

var productOrderColumns = map[string]string{
	"name":  "name",
	"price": "price_cents",
	"stock": "stock",
}

// CreateProduct validates and inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p crm.Product) (crm.Product, error) {
	if err := crm.ValidateProduct(p); err != nil {
		return crm.Product{}, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price_cents, stock) VALUES (?, ?, ?, ?)`,
		p.ID.String(), p.Name, int64(p.Price), p.Stock)
	if err != nil {
		return crm.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (crm.Product, error) {
	var (
		p     crm.Product
		rawID string
		price int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price_cents, stock FROM products WHERE id = ?`, id.String(),
	).Scan(&rawID, &p.Name, &price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Product{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Product{}, fmt.Errorf("get product: %w", err)
	}
	p.Price = crm.Cents(price)
	if p.ID, err = uuid.Parse(rawID); err != nil {
		return crm.Product{}, fmt.Errorf("parse product id %q: %w", rawID, err)
	}
	return p, nil
}

// ListProducts returns a filtered, ordered, paginated product listing with
// the total match count.
func (s *Store) ListProducts(ctx context.Context, f crm.ProductFilter) ([]crm.Product, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Name != "" {
		where = append(where, "name LIKE ? COLLATE NOCASE ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Name)+"%")
	}
	if f.PriceMin != nil {
		where = append(where, "price_cents >= ?")
		args = append(args, int64(*f.PriceMin))
	}
	if f.PriceMax != nil {
		where = append(where, "price_cents <= ?")
		args = append(args, int64(*f.PriceMax))
	}
	if f.StockMin != nil {
		where = append(where, "stock >= ?")
		args = append(args, *f.StockMin)
	}
	if f.StockMax != nil {
		where = append(where, "stock <= ?")
		args = append(args, *f.StockMax)
	}

	column, direction, err := crm.ParseOrderBy(f.OrderBy, "name", productOrderColumns)
	if err != nil {
		return nil, 0, err
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	page := f.Page.Normalize()
	query := fmt.Sprintf(
		"SELECT id, name, price_cents, stock FROM products WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		whereClause, column, direction)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Product
	for rows.Next() {
		var (
			p     crm.Product
			rawID string
			price int64
		)
		if err := rows.Scan(&rawID, &p.Name, &price, &p.Stock); err != nil {
			return nil, 0, err
		}
		p.Price = crm.Cents(price)
		if p.ID, err = uuid.Parse(rawID); err != nil {
			return nil, 0, fmt.Errorf("parse product id %q: %w", rawID, err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// RestockBelow raises the stock of every product under threshold by
// increment and returns the affected products with their new stock.
func (s *Store) RestockBelow(ctx context.Context, threshold, increment int) ([]crm.Product, error) {
	if increment <= 0 {
		return nil, fmt.Errorf("restock increment must be positive, got %d", increment)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, price_cents, stock FROM products WHERE stock < ? ORDER BY name`, threshold)
	if err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}

	var low []crm.Product
	for rows.Next() {
		var (
			p     crm.Product
			rawID string
			price int64
		)
		if err := rows.Scan(&rawID, &p.Name, &price, &p.Stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		p.Price = crm.Cents(price)
		if p.ID, err = uuid.Parse(rawID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse product id %q: %w", rawID, err)
		}
		low = append(low, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE stock < ?`, increment, threshold); err != nil {
		return nil, fmt.Errorf("restock update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for i := range low {
		low[i].Stock += increment
	}
	return low, nil
}
