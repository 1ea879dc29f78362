// Package report generates the periodic CRM report: it aggregates the
// customer, order and revenue totals, appends one line to the report log,
// writes a CSV artifact and persists the run.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/cache"
	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/metrics"
)

const (
	// ReportLogFile collects one line per generated report.
	ReportLogFile = "crm_report_log.txt"
	// HeartbeatLogFile collects the liveness heartbeat lines.
	HeartbeatLogFile = "crm_heartbeat_log.txt"
	// RestockLogFile collects low-stock top-up lines.
	RestockLogFile = "low_stock_updates_log.txt"
	// ReminderLogFile collects order reminder lines.
	ReminderLogFile = "order_reminders_log.txt"
)

// Store is the persistence surface the generator needs.
type Store interface {
	Summary(ctx context.Context, since time.Time) (crm.Summary, error)
	InsertReport(ctx context.Context, r crm.Report) error
}

// Generator produces and records CRM reports.
type Generator struct {
	store   Store
	journal *Journal
	cache   cache.Cache
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGenerator creates a report generator. The cache may be nil.
func NewGenerator(store Store, journal *Journal, c cache.Cache) *Generator {
	return &Generator{
		store:   store,
		journal: journal,
		cache:   c,
		logger:  log.WithComponent("report"),
		now:     time.Now,
	}
}

// Generate aggregates the current totals, appends the report line, writes
// the CSV artifact and persists the report row.
func (g *Generator) Generate(ctx context.Context) (crm.Report, error) {
	sum, err := g.store.Summary(ctx, time.Time{})
	if err != nil {
		metrics.IncReportGenerated("failure")
		return crm.Report{}, fmt.Errorf("aggregate summary: %w", err)
	}

	now := g.now().UTC()
	rep := crm.Report{
		ID:          uuid.New(),
		Customers:   sum.Customers,
		Orders:      sum.Orders,
		Revenue:     sum.Revenue,
		GeneratedAt: now,
	}

	line := fmt.Sprintf("%s - Report: %d customers, %d orders, %s revenue",
		now.Format("2006-01-02 15:04:05"), rep.Customers, rep.Orders, rep.Revenue)
	if err := g.journal.Append(ReportLogFile, line); err != nil {
		metrics.IncReportGenerated("failure")
		return crm.Report{}, err
	}

	if err := g.writeCSV(rep); err != nil {
		metrics.IncReportGenerated("failure")
		return crm.Report{}, err
	}

	if err := g.store.InsertReport(ctx, rep); err != nil {
		metrics.IncReportGenerated("failure")
		return crm.Report{}, fmt.Errorf("persist report: %w", err)
	}

	if g.cache != nil {
		g.cache.Invalidate(ctx, "reports")
		g.cache.Delete(ctx, "summary")
	}

	metrics.IncReportGenerated("success")
	g.logger.Info().
		Str("event", "report.generated").
		Str("report_id", rep.ID.String()).
		Int64("customers", rep.Customers).
		Int64("orders", rep.Orders).
		Str("revenue", rep.Revenue.String()).
		Msg("report generated")
	return rep, nil
}

// writeCSV writes the report artifact atomically so a crash never leaves
// a half-written file behind.
func (g *Generator) writeCSV(rep crm.Report) error {
	name := fmt.Sprintf("report-%s.csv", rep.GeneratedAt.Format("20060102-150405"))
	path := filepath.Join(g.journal.Dir(), name)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			g.logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	w := csv.NewWriter(pendingFile)
	records := [][]string{
		{"report_id", "generated_at", "customers", "orders", "revenue"},
		{
			rep.ID.String(),
			rep.GeneratedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", rep.Customers),
			fmt.Sprintf("%d", rep.Orders),
			rep.Revenue.String(),
		},
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write report CSV: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}

// Heartbeat appends one liveness line to the heartbeat log.
func (g *Generator) Heartbeat(ctx context.Context) error {
	line := g.now().UTC().Format("02/01/2006-15:04:05") + " CRM is alive"
	return g.journal.Append(HeartbeatLogFile, line)
}
