// crmd is the CRM daemon: HTTP API, task worker and beat scheduler in
// one binary, selectable per process via CRM_ROLE.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alxcrm/crm/internal/api"
	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/cache"
	"github.com/alxcrm/crm/internal/config"
	"github.com/alxcrm/crm/internal/daemon"
	"github.com/alxcrm/crm/internal/health"
	crmlog "github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/report"
	"github.com/alxcrm/crm/internal/results"
	"github.com/alxcrm/crm/internal/scheduler"
	"github.com/alxcrm/crm/internal/store"
	"github.com/alxcrm/crm/internal/tasks"
	"github.com/alxcrm/crm/internal/telemetry"
	"github.com/alxcrm/crm/internal/worker"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "report":
			os.Exit(runReportCmd(os.Args[2:]))
		case "seed":
			os.Exit(runSeedCmd(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	crmlog.Configure(crmlog.Config{
		Service: "crmd",
		Version: version,
	})
	logger := crmlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Explicit --config wins; otherwise pick up a config file saved in
	// the data directory when one exists.
	effectiveConfigPath := *configPath
	if effectiveConfigPath == "" {
		autoPath := filepath.Join(config.ParseString("CRM_DATA_DIR", config.Defaults().DataDir), "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	cfg, err := config.Load(effectiveConfigPath, version)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}
	crmlog.SetLevel(cfg.LogLevel)

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("role", string(cfg.Role)).
		Str("addr", cfg.ListenAddr).
		Msg("starting crmd")
	logger.Info().Msgf("→ Redis: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Report schedule: %s", cfg.ReportSchedule)
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured (auth disabled). Set CRM_API_TOKEN for security.")
	}

	for _, dir := range []string{cfg.DataDir, cfg.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("failed to create data directory")
		}
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "crmd",
		ServiceVersion: version,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open database")
	}

	b, err := broker.New(broker.Config{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxRetries: cfg.TaskMaxRetries,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}

	rs, err := results.Open(cfg.ResultsDir, config.ParseDuration("CRM_RESULTS_RETENTION", 7*24*time.Hour))
	if err != nil {
		logger.Fatal().Err(err).Str("results_dir", cfg.ResultsDir).Msg("failed to open results store")
	}

	var c cache.Cache
	if cfg.CacheTTL > 0 {
		c, err = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis cache unavailable, using in-memory cache")
			c = cache.NewMemory(time.Minute)
		}
	}

	journal, err := report.NewJournal(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create journal")
	}
	gen := report.NewGenerator(st, journal, c)

	w := worker.New(b, rs, worker.Config{
		Concurrency:       cfg.WorkerConcurrency,
		Rate:              cfg.WorkerRate,
		DepthPollInterval: 15 * time.Second,
	})
	tasks.New(gen, st, journal).Register(w)

	entries, err := scheduler.DefaultEntries(cfg.ReportSchedule, cfg.HeartbeatEvery, cfg.RestockEvery, cfg.ReminderSchedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid schedule configuration")
	}
	sched := scheduler.New(b, entries)

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewPingChecker("database", 2*time.Second, st.Ping))
	hm.RegisterChecker(health.NewPingChecker("redis", 2*time.Second, b.Ping))
	hm.RegisterChecker(health.NewPingChecker("results", 2*time.Second, func(ctx context.Context) error {
		_, err := rs.Recent(ctx, 1)
		return err
	}))
	hm.RegisterChecker(health.NewLastReportChecker(8*24*time.Hour, st.LastReportTime))

	tracingService := ""
	if cfg.TracingEnabled {
		tracingService = "crmd"
	}
	apiServer := api.New(api.Config{
		Version:        version,
		APIToken:       cfg.APIToken,
		CacheTTL:       cfg.CacheTTL,
		RateLimitRPM:   cfg.RateLimitRPM,
		TracingService: tracingService,
	}, st, b, rs, c, hm)

	var holder *config.Holder
	if effectiveConfigPath != "" {
		holder = config.NewHolder(cfg, effectiveConfigPath, version)
		holder.OnReload(func(next config.AppConfig) {
			crmlog.SetLevel(next.LogLevel)
		})

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		go func() {
			for range hup {
				logger.Info().Str("event", "config.sighup").Msg("reloading configuration")
				if err := holder.Reload(); err != nil {
					logger.Error().Err(err).Msg("config reload failed")
				}
			}
		}()
	}

	mgr, err := daemon.NewManager(config.ParseServerConfig(cfg.ListenAddr), daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     apiServer.Router(),
		MetricsHandler: promhttp.Handler(),
		Worker:         w,
		Scheduler:      sched,
		ConfigHolder:   holder,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("tracing", tp.Shutdown)
	mgr.RegisterShutdownHook("database", func(context.Context) error { return st.Close() })
	mgr.RegisterShutdownHook("broker", func(context.Context) error { return b.Close() })
	mgr.RegisterShutdownHook("results", func(context.Context) error { return rs.Close() })
	if c != nil {
		mgr.RegisterShutdownHook("cache", func(context.Context) error { return c.Close() })
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "manager.failed").Msg("daemon failed")
	}
	logger.Info().Msg("crmd exiting")
}
