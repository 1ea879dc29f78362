// Package tasks defines the CRM background tasks and binds them to the
// worker pool: report generation, the liveness heartbeat, low-stock
// restocking and order reminders.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/metrics"
	"github.com/alxcrm/crm/internal/report"
	"github.com/alxcrm/crm/internal/worker"
)

// Task names as they travel through the queue.
const (
	ReportGenerate = "report.generate"
	Heartbeat      = "crm.heartbeat"
	StockRestock   = "stock.restock"
	OrdersRemind   = "orders.remind"
)

// Restock defaults: products below the threshold are topped up by the
// increment.
const (
	DefaultRestockThreshold = 10
	DefaultRestockIncrement = 10
)

// DefaultReminderWindow is how far back the reminder task looks.
const DefaultReminderWindow = 7 * 24 * time.Hour

// Store is the persistence surface the tasks need beyond the report
// generator.
type Store interface {
	RestockBelow(ctx context.Context, threshold, increment int) ([]crm.Product, error)
	RecentOrders(ctx context.Context, since time.Time) ([]crm.OrderReminder, error)
}

// RestockPayload overrides the restock defaults for one run.
type RestockPayload struct {
	Threshold int `json:"threshold,omitempty"`
	Increment int `json:"increment,omitempty"`
}

// RemindPayload overrides the reminder window for one run.
type RemindPayload struct {
	Days int `json:"days,omitempty"`
}

// Set holds the task handlers and their dependencies.
type Set struct {
	gen     *report.Generator
	store   Store
	journal *report.Journal
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates the task set.
func New(gen *report.Generator, store Store, journal *report.Journal) *Set {
	return &Set{
		gen:     gen,
		store:   store,
		journal: journal,
		logger:  log.WithComponent("tasks"),
		now:     time.Now,
	}
}

// Register binds every task handler to the worker.
func (s *Set) Register(w *worker.Worker) {
	w.Register(ReportGenerate, s.GenerateReport)
	w.Register(Heartbeat, s.RecordHeartbeat)
	w.Register(StockRestock, s.RestockProducts)
	w.Register(OrdersRemind, s.RemindOrders)
}

// GenerateReport runs the report generator.
func (s *Set) GenerateReport(ctx context.Context, task broker.Task) error {
	_, err := s.gen.Generate(ctx)
	return err
}

// RecordHeartbeat appends one liveness line.
func (s *Set) RecordHeartbeat(ctx context.Context, task broker.Task) error {
	return s.gen.Heartbeat(ctx)
}

// RestockProducts tops up every product whose stock fell below the
// threshold and logs each adjustment.
func (s *Set) RestockProducts(ctx context.Context, task broker.Task) error {
	threshold, increment := DefaultRestockThreshold, DefaultRestockIncrement
	if len(task.Payload) > 0 {
		var p RestockPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode restock payload: %w", err)
		}
		if p.Threshold > 0 {
			threshold = p.Threshold
		}
		if p.Increment > 0 {
			increment = p.Increment
		}
	}

	restocked, err := s.store.RestockBelow(ctx, threshold, increment)
	if err != nil {
		return fmt.Errorf("restock products: %w", err)
	}

	stamp := s.now().UTC().Format("2006-01-02 15:04:05")
	for _, p := range restocked {
		line := fmt.Sprintf("%s - Restocked %s to %d", stamp, p.Name, p.Stock)
		if err := s.journal.Append(report.RestockLogFile, line); err != nil {
			return err
		}
	}

	metrics.AddRestockedProducts(len(restocked))
	s.logger.Info().
		Str("event", "tasks.restocked").
		Int("products", len(restocked)).
		Int("threshold", threshold).
		Msg("low stock products restocked")
	return nil
}

// RemindOrders logs a reminder line for every order placed within the
// reminder window.
func (s *Set) RemindOrders(ctx context.Context, task broker.Task) error {
	window := DefaultReminderWindow
	if len(task.Payload) > 0 {
		var p RemindPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode remind payload: %w", err)
		}
		if p.Days > 0 {
			window = time.Duration(p.Days) * 24 * time.Hour
		}
	}

	since := s.now().Add(-window)
	recent, err := s.store.RecentOrders(ctx, since)
	if err != nil {
		return fmt.Errorf("load recent orders: %w", err)
	}

	stamp := s.now().UTC().Format("2006-01-02 15:04:05")
	for _, r := range recent {
		line := fmt.Sprintf("%s - Reminder: order %s for %s placed %s",
			stamp, r.OrderID, r.CustomerEmail, r.OrderedAt.UTC().Format("2006-01-02"))
		if err := s.journal.Append(report.ReminderLogFile, line); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("event", "tasks.reminders_sent").
		Int("orders", len(recent)).
		Msg("order reminders logged")
	return nil
}
