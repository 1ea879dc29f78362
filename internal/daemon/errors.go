package daemon

import "errors"

var (
	// ErrMissingLogger is returned when no logger is provided.
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingAPIHandler is returned when the serve role has no handler.
	ErrMissingAPIHandler = errors.New("API handler is required")

	// ErrMissingWorker is returned when the worker role has no worker.
	ErrMissingWorker = errors.New("worker is required")

	// ErrMissingScheduler is returned when the beat role has no scheduler.
	ErrMissingScheduler = errors.New("scheduler is required")

	// ErrManagerNotStarted is returned when shutting down a manager that never started.
	ErrManagerNotStarted = errors.New("manager not started")
)
