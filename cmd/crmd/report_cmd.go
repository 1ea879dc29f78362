package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alxcrm/crm/internal/config"
	crmlog "github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/report"
	"github.com/alxcrm/crm/internal/store"
)

// runReportCmd generates one report immediately, without going through
// the queue. Useful for cron fallback and manual runs.
func runReportCmd(args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	_ = fs.Parse(args)

	crmlog.Configure(crmlog.Config{Service: "crmd", Version: version})
	logger := crmlog.WithComponent("report-cmd")

	cfg, err := config.Load(*configPath, version)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open database")
		return 1
	}
	defer func() { _ = st.Close() }()

	journal, err := report.NewJournal(cfg.DataDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create journal")
		return 1
	}

	rep, err := report.NewGenerator(st, journal, nil).Generate(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("report generation failed")
		return 1
	}

	fmt.Fprintf(os.Stdout, "report %s: %d customers, %d orders, %s revenue\n",
		rep.ID, rep.Customers, rep.Orders, rep.Revenue)
	return 0
}
