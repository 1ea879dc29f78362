// Package metrics exposes the Prometheus counters for the CRM: entity
// creation, task execution and queue depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	customersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_customers_created_total",
		Help: "Total number of customers created",
	})

	customersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_customers_rejected_total",
		Help: "Total number of customer rows rejected by validation",
	})

	productsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_products_created_total",
		Help: "Total number of products created",
	})

	ordersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_orders_created_total",
		Help: "Total number of orders created",
	})

	revenueCentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_revenue_cents_total",
		Help: "Total revenue of created orders in cents",
	})

	reportsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_reports_generated_total",
		Help: "Report generation runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	restockedProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_restocked_products_total",
		Help: "Total number of products topped up by the restock task",
	})

	// Task metrics
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_tasks_total",
		Help: "Executed tasks by name and outcome",
	}, []string{"task", "outcome"}) // outcome=ok|error|dead

	taskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_task_duration_seconds",
		Help:    "Task execution time by task name",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crm_queue_depth",
		Help: "Number of tasks per queue (last poll)",
	}, []string{"queue"}) // queue=pending|processing|dead

	schedulerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_scheduler_ticks_total",
		Help: "Scheduler firings by entry and outcome",
	}, []string{"entry", "outcome"}) // outcome=enqueued|skipped|error
)

func IncCustomersCreated(n int)  { customersCreatedTotal.Add(float64(n)) }
func IncCustomersRejected(n int) { customersRejectedTotal.Add(float64(n)) }
func IncProductsCreated()        { productsCreatedTotal.Inc() }

func RecordOrderCreated(totalCents int64) {
	ordersCreatedTotal.Inc()
	revenueCentsTotal.Add(float64(totalCents))
}

func IncReportGenerated(outcome string) { reportsGeneratedTotal.WithLabelValues(outcome).Inc() }
func AddRestockedProducts(n int)        { restockedProductsTotal.Add(float64(n)) }

func RecordTask(task, outcome string, seconds float64) {
	tasksTotal.WithLabelValues(task, outcome).Inc()
	taskDurationSeconds.WithLabelValues(task).Observe(seconds)
}

func RecordQueueDepth(pending, processing, dead int64) {
	queueDepth.WithLabelValues("pending").Set(float64(pending))
	queueDepth.WithLabelValues("processing").Set(float64(processing))
	queueDepth.WithLabelValues("dead").Set(float64(dead))
}

func IncSchedulerTick(entry, outcome string) {
	schedulerTicksTotal.WithLabelValues(entry, outcome).Inc()
}
