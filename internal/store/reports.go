package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/google/uuid"
)

// Summary aggregates the totals behind a report: customer count, order
// count and revenue. A non-zero since restricts orders and revenue to
// orders placed at or after that time; customers are always counted in
// full, matching the weekly report of the original system.
func (s *Store) Summary(ctx context.Context, since time.Time) (crm.Summary, error) {
	var sum crm.Summary

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&sum.Customers); err != nil {
		return crm.Summary{}, fmt.Errorf("count customers: %w", err)
	}

	query := `SELECT COUNT(*), COALESCE(SUM(total_cents), 0) FROM orders`
	args := []any{}
	if !since.IsZero() {
		query += ` WHERE ordered_at >= ?`
		args = append(args, since.UTC().Format(time.RFC3339))
	}
	var revenue int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum.Orders, &revenue); err != nil {
		return crm.Summary{}, fmt.Errorf("aggregate orders: %w", err)
	}
	sum.Revenue = crm.Cents(revenue)
	return sum, nil
}

// InsertReport persists one generated report row.
func (s *Store) InsertReport(ctx context.Context, r crm.Report) error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("report id must be set")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, customers, orders, revenue_cents, generated_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.Customers, r.Orders, int64(r.Revenue), r.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListReports returns up to limit persisted reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]crm.Report, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customers, orders, revenue_cents, generated_at
		 FROM reports ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crm.Report
	for rows.Next() {
		var (
			r       crm.Report
			rawID   string
			revenue int64
			genRaw  string
		)
		if err := rows.Scan(&rawID, &r.Customers, &r.Orders, &revenue, &genRaw); err != nil {
			return nil, err
		}
		r.Revenue = crm.Cents(revenue)
		if r.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse report id %q: %w", rawID, err)
		}
		if r.GeneratedAt, err = time.Parse(time.RFC3339, genRaw); err != nil {
			return nil, fmt.Errorf("parse report time %q: %w", genRaw, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastReportTime returns the generation time of the newest report, or the
// zero time when no report has run yet. Feeds the readiness checker.
func (s *Store) LastReportTime(ctx context.Context) (time.Time, error) {
	var raw *string
	err := s.db.QueryRowContext(ctx, `SELECT MAX(generated_at) FROM reports`).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("last report time: %w", err)
	}
	if raw == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse report time %q: %w", *raw, err)
	}
	return t, nil
}
