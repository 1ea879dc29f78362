package config

import "time"

// ServerConfig holds HTTP server tuning shared by the API and metrics listeners.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// ParseServerConfig reads HTTP server tuning from the environment.
func ParseServerConfig(listenAddr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      listenAddr,
		ReadTimeout:     ParseDuration("CRM_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    ParseDuration("CRM_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     ParseDuration("CRM_HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: ParseDuration("CRM_HTTP_SHUTDOWN_TIMEOUT", 20*time.Second),
		MaxHeaderBytes:  ParseInt("CRM_HTTP_MAX_HEADER_BYTES", 1<<20),
	}
}
