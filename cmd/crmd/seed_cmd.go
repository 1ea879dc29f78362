package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alxcrm/crm/internal/config"
	"github.com/alxcrm/crm/internal/crm"
	crmlog "github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/store"
)

// runSeedCmd imports customers from a CSV file with a name,email,phone
// header. Invalid rows are reported and skipped; valid rows are kept.
func runSeedCmd(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	file := fs.String("file", "", "path to customers CSV (name,email,phone)")
	_ = fs.Parse(args)

	crmlog.Configure(crmlog.Config{Service: "crmd", Version: version})
	logger := crmlog.WithComponent("seed-cmd")

	if *file == "" {
		logger.Error().Msg("missing --file")
		return 2
	}

	cfg, err := config.Load(*configPath, version)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	customers, err := readCustomersCSV(*file)
	if err != nil {
		logger.Error().Err(err).Str("file", *file).Msg("failed to read CSV")
		return 1
	}
	if len(customers) == 0 {
		logger.Warn().Str("file", *file).Msg("no rows to import")
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open database")
		return 1
	}
	defer func() { _ = st.Close() }()

	created, failures, err := st.BulkCreateCustomers(ctx, customers)
	if err != nil {
		logger.Error().Err(err).Msg("bulk import failed")
		return 1
	}
	for _, f := range failures {
		logger.Warn().
			Int("row", f.Index+2). // header is row 1
			Str("email", f.Email).
			Str("error", f.Err).
			Msg("row skipped")
	}

	fmt.Fprintf(os.Stdout, "imported %d customers (%d skipped)\n", len(created), len(failures))
	return 0
}

func readCustomersCSV(path string) ([]crm.Customer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var out []crm.Customer
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		c := crm.Customer{
			Name:  field(rec, col["name"]),
			Email: field(rec, col["email"]),
		}
		if i, ok := col["phone"]; ok {
			c.Phone = field(rec, i)
		}
		out = append(out, c)
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
