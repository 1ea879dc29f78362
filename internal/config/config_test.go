package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "test")
	require.NoError(t, err)

	assert.Equal(t, RoleAll, cfg.Role)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, "mon 06:00", cfg.ReportSchedule)
	assert.Equal(t, filepath.Join(cfg.DataDir, "crm.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "results"), cfg.ResultsDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listenAddr: \":7000\"\nworkerConcurrency: 8\nheartbeatEvery: 1m\n"), 0o600))

	t.Setenv("CRM_LISTEN", ":7100")

	cfg, err := Load(path, "test")
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.ListenAddr, "env wins over file")
	assert.Equal(t, 8, cfg.WorkerConcurrency, "file wins over default")
	assert.Equal(t, time.Minute, cfg.HeartbeatEvery)
}

func TestLoadFileCoversAllFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `role: worker
listenAddr: ":7000"
metricsAddr: ":7001"
apiToken: sekrit
dataDir: /tmp/crm-test
redisAddr: redis.internal:6379
redisDB: 2
workerConcurrency: 8
workerRate: 2.5
taskMaxRetries: 5
reportSchedule: fri 18:00
reminderSchedule: daily 09:30
heartbeatEvery: 90s
restockEvery: 6h
logLevel: debug
rateLimitRPM: 120
cacheTTL: 30s
tracingEnabled: true
tracingExporter: http
tracingEndpoint: otel.internal:4318
tracingSampling: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path, "test")
	require.NoError(t, err)

	want := Defaults()
	want.Version = "test"
	want.Role = RoleWorker
	want.ListenAddr = ":7000"
	want.MetricsAddr = ":7001"
	want.APIToken = "sekrit"
	want.DataDir = "/tmp/crm-test"
	want.DBPath = filepath.Join("/tmp/crm-test", "crm.db")
	want.ResultsDir = filepath.Join("/tmp/crm-test", "results")
	want.RedisAddr = "redis.internal:6379"
	want.RedisDB = 2
	want.WorkerConcurrency = 8
	want.WorkerRate = 2.5
	want.TaskMaxRetries = 5
	want.ReportSchedule = "fri 18:00"
	want.ReminderSchedule = "daily 09:30"
	want.HeartbeatEvery = 90 * time.Second
	want.RestockEvery = 6 * time.Hour
	want.LogLevel = "debug"
	want.RateLimitRPM = 120
	want.CacheTTL = 30 * time.Second
	want.TracingEnabled = true
	want.TracingExporter = "http"
	want.TracingEndpoint = "otel.internal:4318"
	want.TracingSampling = 0.25

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listenPort: 7000\n"), 0o600))

	_, err := Load(path, "test")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		ok     bool
	}{
		{"defaults", func(c *AppConfig) {}, true},
		{"bad role", func(c *AppConfig) { c.Role = "celery" }, false},
		{"empty listen", func(c *AppConfig) { c.ListenAddr = "" }, false},
		{"listen without port", func(c *AppConfig) { c.ListenAddr = "localhost" }, false},
		{"metrics disabled", func(c *AppConfig) { c.MetricsAddr = "" }, true},
		{"empty redis", func(c *AppConfig) { c.RedisAddr = " " }, false},
		{"zero concurrency", func(c *AppConfig) { c.WorkerConcurrency = 0 }, false},
		{"negative retries", func(c *AppConfig) { c.TaskMaxRetries = -1 }, false},
		{"negative heartbeat", func(c *AppConfig) { c.HeartbeatEvery = -time.Second }, false},
		{"sampling out of range", func(c *AppConfig) { c.TracingSampling = 1.5 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHolderReloadAppliesReloadableSubset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rateLimitRPM: 100\n"), 0o600))

	cfg, err := Load(path, "test")
	require.NoError(t, err)
	require.Equal(t, 100, cfg.RateLimitRPM)

	holder := NewHolder(cfg, path, "test")
	var seen []int
	holder.OnReload(func(c AppConfig) { seen = append(seen, c.RateLimitRPM) })

	require.NoError(t, os.WriteFile(path, []byte("rateLimitRPM: 250\nlistenAddr: \":1\"\n"), 0o600))
	require.NoError(t, holder.Reload())

	got := holder.Current()
	assert.Equal(t, 250, got.RateLimitRPM)
	assert.Equal(t, cfg.ListenAddr, got.ListenAddr, "structural settings keep their boot value")
	assert.Equal(t, []int{250}, seen)
}

func TestHolderReloadKeepsConfigOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rateLimitRPM: 100\n"), 0o600))

	cfg, err := Load(path, "test")
	require.NoError(t, err)
	holder := NewHolder(cfg, path, "test")

	require.NoError(t, os.WriteFile(path, []byte(":\nnot yaml"), 0o600))
	assert.Error(t, holder.Reload())
	assert.Equal(t, 100, holder.Current().RateLimitRPM)
}
