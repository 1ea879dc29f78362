package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// mergeFile overlays the YAML file at path onto cfg. Unset fields in the
// file leave the current values untouched.
func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	file.apply(cfg)
	return nil
}

// fileConfig mirrors AppConfig with pointer fields so absent keys are
// distinguishable from zero values.
type fileConfig struct {
	Role              *string  `yaml:"role"`
	ListenAddr        *string  `yaml:"listenAddr"`
	MetricsAddr       *string  `yaml:"metricsAddr"`
	APIToken          *string  `yaml:"apiToken"`
	DataDir           *string  `yaml:"dataDir"`
	DBPath            *string  `yaml:"dbPath"`
	ResultsDir        *string  `yaml:"resultsDir"`
	RedisAddr         *string  `yaml:"redisAddr"`
	RedisDB           *int     `yaml:"redisDB"`
	RedisPassword     *string  `yaml:"redisPassword"`
	WorkerConcurrency *int     `yaml:"workerConcurrency"`
	WorkerRate        *float64 `yaml:"workerRate"`
	TaskMaxRetries    *int     `yaml:"taskMaxRetries"`
	ReportSchedule    *string  `yaml:"reportSchedule"`
	ReminderSchedule  *string  `yaml:"reminderSchedule"`
	HeartbeatEvery    *string  `yaml:"heartbeatEvery"`
	RestockEvery      *string  `yaml:"restockEvery"`
	LogLevel          *string  `yaml:"logLevel"`
	RateLimitRPM      *int     `yaml:"rateLimitRPM"`
	CacheTTL          *string  `yaml:"cacheTTL"`
	TracingEnabled    *bool    `yaml:"tracingEnabled"`
	TracingExporter   *string  `yaml:"tracingExporter"`
	TracingEndpoint   *string  `yaml:"tracingEndpoint"`
	TracingSampling   *float64 `yaml:"tracingSampling"`
}

func (f fileConfig) apply(cfg *AppConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString((*string)(&cfg.Role), f.Role)
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.MetricsAddr, f.MetricsAddr)
	setString(&cfg.APIToken, f.APIToken)
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.DBPath, f.DBPath)
	setString(&cfg.ResultsDir, f.ResultsDir)
	setString(&cfg.RedisAddr, f.RedisAddr)
	setString(&cfg.RedisPassword, f.RedisPassword)
	setString(&cfg.ReportSchedule, f.ReportSchedule)
	setString(&cfg.ReminderSchedule, f.ReminderSchedule)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.TracingExporter, f.TracingExporter)
	setString(&cfg.TracingEndpoint, f.TracingEndpoint)

	if f.RedisDB != nil {
		cfg.RedisDB = *f.RedisDB
	}
	if f.WorkerConcurrency != nil {
		cfg.WorkerConcurrency = *f.WorkerConcurrency
	}
	if f.WorkerRate != nil {
		cfg.WorkerRate = *f.WorkerRate
	}
	if f.TaskMaxRetries != nil {
		cfg.TaskMaxRetries = *f.TaskMaxRetries
	}
	if f.RateLimitRPM != nil {
		cfg.RateLimitRPM = *f.RateLimitRPM
	}
	if f.TracingEnabled != nil {
		cfg.TracingEnabled = *f.TracingEnabled
	}
	if f.TracingSampling != nil {
		cfg.TracingSampling = *f.TracingSampling
	}
	setDuration(&cfg.HeartbeatEvery, f.HeartbeatEvery)
	setDuration(&cfg.RestockEvery, f.RestockEvery)
	setDuration(&cfg.CacheTTL, f.CacheTTL)
}

func setDuration(dst *time.Duration, src *string) {
	if src == nil {
		return
	}
	if d, err := time.ParseDuration(*src); err == nil {
		*dst = d
	}
}

