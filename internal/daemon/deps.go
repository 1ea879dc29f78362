package daemon

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/config"
)

// Runner is a long-lived component that blocks until its context is
// cancelled. Satisfied by the worker and the beat scheduler.
type Runner interface {
	Run(ctx context.Context) error
}

// Deps contains the dependencies required by the daemon Manager. Which
// fields must be set depends on the configured role.
type Deps struct {
	// Logger is the structured logger for the daemon.
	Logger zerolog.Logger

	// Config is the resolved application configuration.
	Config config.AppConfig

	// APIHandler serves the CRM HTTP API (serve and all roles).
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on its own listener.
	// Nil disables the metrics server.
	MetricsHandler http.Handler

	// Worker consumes queued tasks (worker and all roles).
	Worker Runner

	// Scheduler enqueues periodic tasks (beat and all roles).
	Scheduler Runner

	// ConfigHolder enables hot reload of the config file when set.
	ConfigHolder *config.Holder
}

// Validate checks that the dependencies match the configured role.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	role := d.Config.Role
	if (role == config.RoleAll || role == config.RoleServe) && d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	if (role == config.RoleAll || role == config.RoleWorker) && d.Worker == nil {
		return ErrMissingWorker
	}
	if (role == config.RoleAll || role == config.RoleBeat) && d.Scheduler == nil {
		return ErrMissingScheduler
	}
	return nil
}
