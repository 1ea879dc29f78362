package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxcrm/crm/internal/config"
)

type blockingRunner struct {
	started chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testDeps(role config.Role) Deps {
	cfg := config.Defaults()
	cfg.Role = role
	cfg.MetricsAddr = "" // no metrics listener in tests
	return Deps{
		Logger:     zerolog.New(io.Discard),
		Config:     cfg,
		APIHandler: http.NewServeMux(),
		Worker:     newBlockingRunner(),
		Scheduler:  newBlockingRunner(),
	}
}

func testServerCfg() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: 2 * time.Second,
		MaxHeaderBytes:  1 << 16,
	}
}

func TestNewManagerValidatesDeps(t *testing.T) {
	deps := testDeps(config.RoleServe)
	deps.APIHandler = nil
	_, err := NewManager(testServerCfg(), deps)
	require.ErrorIs(t, err, ErrMissingAPIHandler)

	deps = testDeps(config.RoleWorker)
	deps.Worker = nil
	_, err = NewManager(testServerCfg(), deps)
	require.ErrorIs(t, err, ErrMissingWorker)

	deps = testDeps(config.RoleBeat)
	deps.Scheduler = nil
	_, err = NewManager(testServerCfg(), deps)
	require.ErrorIs(t, err, ErrMissingScheduler)
}

func TestManagerStartAndShutdown(t *testing.T) {
	deps := testDeps(config.RoleAll)
	worker := deps.Worker.(*blockingRunner)
	beat := deps.Scheduler.(*blockingRunner)

	m, err := NewManager(testServerCfg(), deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	select {
	case <-worker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started")
	}
	select {
	case <-beat.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never started")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestManagerStopsOnRunnerFailure(t *testing.T) {
	deps := testDeps(config.RoleWorker)
	boom := errors.New("broker gone")
	deps.Worker.(*blockingRunner).err = boom

	m, err := NewManager(testServerCfg(), deps)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = m.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestManagerShutdownHooksRunInReverse(t *testing.T) {
	deps := testDeps(config.RoleBeat)
	m, err := NewManager(testServerCfg(), deps)
	require.NoError(t, err)

	var order []string
	m.RegisterShutdownHook("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.RegisterShutdownHook("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	<-deps.Scheduler.(*blockingRunner).started

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(testServerCfg(), testDeps(config.RoleAll))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}
