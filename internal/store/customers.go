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

var customerOrderColumns = map[string]string{
	"name":  "name",
	"email": "email",
}

// CreateCustomer validates and inserts a customer. The email must be
// unique across the table.
func (s *Store) CreateCustomer(ctx context.Context, c crm.Customer) (crm.Customer, error) {
	if err := crm.ValidateCustomer(c); err != nil {
		return crm.Customer{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `INSERT INTO customers (id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		c.ID.String(), c.Name, c.Email, c.Phone, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return crm.Customer{}, crm.ErrDuplicateEmail
		}
		return crm.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// BulkError describes why one row of a bulk customer import was rejected.
type BulkError struct {
	Index int    `json:"index"`
	Email string `json:"email,omitempty"`
	Err   string `json:"error"`
}

// BulkCreateCustomers inserts every valid row in one transaction and
// reports per-row errors for the rest. Valid rows are committed even when
// other rows fail.
func (s *Store) BulkCreateCustomers(ctx context.Context, in []crm.Customer) ([]crm.Customer, []BulkError, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		created  []crm.Customer
		failures []BulkError
		seen     = make(map[string]struct{}, len(in))
		now      = time.Now().UTC().Format(time.RFC3339)
	)

	for i, c := range in {
		if err := crm.ValidateCustomer(c); err != nil {
			failures = append(failures, BulkError{Index: i, Email: c.Email, Err: err.Error()})
			continue
		}
		key := strings.ToLower(c.Email)
		if _, dup := seen[key]; dup {
			failures = append(failures, BulkError{Index: i, Email: c.Email, Err: crm.ErrDuplicateEmail.Error()})
			continue
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO customers (id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID.String(), c.Name, c.Email, c.Phone, now)
		if err != nil {
			if isUniqueViolation(err) {
				failures = append(failures, BulkError{Index: i, Email: c.Email, Err: crm.ErrDuplicateEmail.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("insert customer %s: %w", c.Email, err)
		}
		seen[key] = struct{}{}
		created = append(created, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return created, failures, nil
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (crm.Customer, error) {
	var (
		c     crm.Customer
		rawID string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone FROM customers WHERE id = ?`, id.String(),
	).Scan(&rawID, &c.Name, &c.Email, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Customer{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	c.ID, err = uuid.Parse(rawID)
	if err != nil {
		return crm.Customer{}, fmt.Errorf("parse customer id %q: %w", rawID, err)
	}
	return c, nil
}

// ListCustomers returns a filtered, ordered, paginated customer listing
// together with the total match count.
func (s *Store) ListCustomers(ctx context.Context, f crm.CustomerFilter) ([]crm.Customer, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Name != "" {
		where = append(where, "name LIKE ? COLLATE NOCASE ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Name)+"%")
	}
	if f.Email != "" {
		where = append(where, "email LIKE ? COLLATE NOCASE ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Email)+"%")
	}
	if f.PhonePrefix != "" {
		where = append(where, "phone LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.PhonePrefix)+"%")
	}

	column, direction, err := crm.ParseOrderBy(f.OrderBy, "name", customerOrderColumns)
	if err != nil {
		return nil, 0, err
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM customers WHERE " + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	page := f.Page.Normalize()
	query := fmt.Sprintf(
		"SELECT id, name, email, phone FROM customers WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		whereClause, column, direction)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Customer
	for rows.Next() {
		var (
			c     crm.Customer
			rawID string
		)
		if err := rows.Scan(&rawID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, 0, err
		}
		if c.ID, err = uuid.Parse(rawID); err != nil {
			return nil, 0, fmt.Errorf("parse customer id %q: %w", rawID, err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// CountCustomers returns the total number of customers.
func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n)
	return n, err
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE wildcards in user input so they match
// literally. The clauses using it carry ESCAPE '\' to make the
// backslash the escape character.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
