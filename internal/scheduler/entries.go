package scheduler

import (
	"fmt"
	"time"

	"github.com/alxcrm/crm/internal/tasks"
)

// Every builds an interval spec directly, for schedules configured as
// durations.
func Every(d time.Duration) Spec {
	return Spec{kind: kindEvery, every: d}
}

// DefaultEntries builds the standard CRM schedule: the weekly report, the
// heartbeat, the low-stock restock and the order reminders.
func DefaultEntries(reportSpec string, heartbeatEvery, restockEvery time.Duration, reminderSpec string) ([]Entry, error) {
	report, err := ParseSpec(reportSpec)
	if err != nil {
		return nil, fmt.Errorf("report schedule: %w", err)
	}
	reminder, err := ParseSpec(reminderSpec)
	if err != nil {
		return nil, fmt.Errorf("reminder schedule: %w", err)
	}
	return []Entry{
		{Name: "weekly-report", Task: tasks.ReportGenerate, Spec: report},
		{Name: "heartbeat", Task: tasks.Heartbeat, Spec: Every(heartbeatEvery)},
		{Name: "restock", Task: tasks.StockRestock, Spec: Every(restockEvery)},
		{Name: "order-reminders", Task: tasks.OrdersRemind, Spec: reminder},
	}, nil
}
