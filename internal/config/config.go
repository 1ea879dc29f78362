// Package config loads service configuration with ENV > file > defaults
// precedence, following the CRM_* environment variable namespace.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"
)

// Role selects which parts of the daemon run in this process, mirroring a
// split broker deployment (API, workers and the beat can be scaled apart).
type Role string

const (
	RoleAll    Role = "all"
	RoleServe  Role = "serve"
	RoleWorker Role = "worker"
	RoleBeat   Role = "beat"
)

// AppConfig holds the full runtime configuration of the CRM daemon.
type AppConfig struct {
	Version string `yaml:"-"`
	Role    Role   `yaml:"role"`

	ListenAddr  string `yaml:"listenAddr"`
	MetricsAddr string `yaml:"metricsAddr"` // empty disables the metrics listener
	APIToken    string `yaml:"apiToken"`

	DataDir    string `yaml:"dataDir"`
	DBPath     string `yaml:"dbPath"`
	ResultsDir string `yaml:"resultsDir"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPassword string `yaml:"redisPassword"`

	WorkerConcurrency int     `yaml:"workerConcurrency"`
	WorkerRate        float64 `yaml:"workerRate"` // tasks/sec, 0 = unlimited
	TaskMaxRetries    int     `yaml:"taskMaxRetries"`

	ReportSchedule   string        `yaml:"reportSchedule"`
	ReminderSchedule string        `yaml:"reminderSchedule"`
	HeartbeatEvery   time.Duration `yaml:"heartbeatEvery"`
	RestockEvery     time.Duration `yaml:"restockEvery"`

	LogLevel     string        `yaml:"logLevel"`
	RateLimitRPM int           `yaml:"rateLimitRPM"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`

	TracingEnabled  bool    `yaml:"tracingEnabled"`
	TracingExporter string  `yaml:"tracingExporter"`
	TracingEndpoint string  `yaml:"tracingEndpoint"`
	TracingSampling float64 `yaml:"tracingSampling"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() AppConfig {
	return AppConfig{
		Role:              RoleAll,
		ListenAddr:        ":8080",
		MetricsAddr:       ":9090",
		DataDir:           "/var/lib/crmd",
		RedisAddr:         "127.0.0.1:6379",
		WorkerConcurrency: 4,
		TaskMaxRetries:    3,
		ReportSchedule:    "mon 06:00",
		ReminderSchedule:  "daily 08:00",
		HeartbeatEvery:    5 * time.Minute,
		RestockEvery:      12 * time.Hour,
		LogLevel:          "info",
		RateLimitRPM:      600,
		CacheTTL:          5 * time.Minute,
		TracingExporter:   "grpc",
		TracingSampling:   1.0,
	}
}

// Load resolves the configuration: defaults, then the optional YAML file,
// then environment variables on top.
func Load(filePath, version string) (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = version

	if filePath != "" {
		if err := mergeFile(&cfg, filePath); err != nil {
			return AppConfig{}, fmt.Errorf("config file %s: %w", filePath, err)
		}
	}
	mergeEnv(&cfg)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "crm.db")
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = filepath.Join(cfg.DataDir, "results")
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// mergeEnv overlays CRM_* environment variables onto cfg.
func mergeEnv(cfg *AppConfig) {
	cfg.Role = Role(ParseString("CRM_ROLE", string(cfg.Role)))
	cfg.ListenAddr = ParseString("CRM_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("CRM_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.APIToken = ParseString("CRM_API_TOKEN", cfg.APIToken)
	cfg.DataDir = ParseString("CRM_DATA_DIR", cfg.DataDir)
	cfg.DBPath = ParseString("CRM_DB_PATH", cfg.DBPath)
	cfg.ResultsDir = ParseString("CRM_RESULTS_DIR", cfg.ResultsDir)
	cfg.RedisAddr = ParseString("CRM_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisDB = ParseInt("CRM_REDIS_DB", cfg.RedisDB)
	cfg.RedisPassword = ParseString("CRM_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.WorkerConcurrency = ParseInt("CRM_WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.WorkerRate = ParseFloat("CRM_WORKER_RATE", cfg.WorkerRate)
	cfg.TaskMaxRetries = ParseInt("CRM_TASK_MAX_RETRIES", cfg.TaskMaxRetries)
	cfg.ReportSchedule = ParseString("CRM_REPORT_SCHEDULE", cfg.ReportSchedule)
	cfg.ReminderSchedule = ParseString("CRM_REMINDER_SCHEDULE", cfg.ReminderSchedule)
	cfg.HeartbeatEvery = ParseDuration("CRM_HEARTBEAT_EVERY", cfg.HeartbeatEvery)
	cfg.RestockEvery = ParseDuration("CRM_RESTOCK_EVERY", cfg.RestockEvery)
	cfg.LogLevel = ParseString("CRM_LOG_LEVEL", cfg.LogLevel)
	cfg.RateLimitRPM = ParseInt("CRM_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.CacheTTL = ParseDuration("CRM_CACHE_TTL", cfg.CacheTTL)
	cfg.TracingEnabled = ParseBool("CRM_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = ParseString("CRM_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.TracingEndpoint = ParseString("CRM_TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.TracingSampling = ParseFloat("CRM_TRACING_SAMPLING", cfg.TracingSampling)
}

// Validate fails fast on configuration that cannot work at runtime.
// Schedule specs are validated where the beat entries are built.
func (c AppConfig) Validate() error {
	switch c.Role {
	case RoleAll, RoleServe, RoleWorker, RoleBeat:
	default:
		return fmt.Errorf("invalid role %q (want all, serve, worker or beat)", c.Role)
	}
	if err := validateListenAddr(c.ListenAddr); err != nil {
		return fmt.Errorf("listen addr: %w", err)
	}
	if c.MetricsAddr != "" {
		if err := validateListenAddr(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics addr: %w", err)
		}
	}
	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis addr must not be empty")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be >= 1, got %d", c.WorkerConcurrency)
	}
	if c.WorkerRate < 0 {
		return fmt.Errorf("worker rate must be >= 0, got %v", c.WorkerRate)
	}
	if c.TaskMaxRetries < 0 {
		return fmt.Errorf("task max retries must be >= 0, got %d", c.TaskMaxRetries)
	}
	if c.HeartbeatEvery <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.HeartbeatEvery)
	}
	if c.RestockEvery <= 0 {
		return fmt.Errorf("restock interval must be positive, got %v", c.RestockEvery)
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate limit must be >= 0, got %d", c.RateLimitRPM)
	}
	if c.TracingSampling < 0 || c.TracingSampling > 1 {
		return fmt.Errorf("tracing sampling must be in [0,1], got %v", c.TracingSampling)
	}
	return nil
}

func validateListenAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("must not be empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid host:port %q: %w", addr, err)
	}
	return nil
}
