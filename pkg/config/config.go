// Copyright 2025 Takhin Data, Inc.

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/streamcap/throttle/pkg/audit"
)

// Config represents the streamcapd application configuration: a single
// throttle Group, its adaptive governor, the admin API that exposes both,
// and the ambient logging/metrics layers.
type Config struct {
	Group    GroupConfig    `koanf:"group"`
	Governor GovernorConfig `koanf:"governor"`
	AdminAPI AdminAPIConfig `koanf:"admin_api"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Profiler ProfilerConfig `koanf:"profiler"`
	Audit    audit.Config   `koanf:"audit"`
}

// GroupConfig mirrors throttle.Config's koanf tags so it loads directly
// from the same file/env sources as the rest of the app config.
type GroupConfig struct {
	BytesPerSecond             int  `koanf:"bytes_per_second"`
	IsThrottled                bool `koanf:"is_throttled"`
	TicksPerSecond             int  `koanf:"ticks_per_second"`
	MaxBufferSize              int  `koanf:"max_buffer_size"`
	ThroughputSampleIntervalMs int  `koanf:"throughput_sample_interval_ms"`
	ThroughputSampleSize       int  `koanf:"throughput_sample_size"`
}

// GovernorConfig mirrors governor.Config's fields, except that the check
// interval is loaded as integer milliseconds (check_interval_ms) rather
// than governor.Config's time.Duration check_interval.
type GovernorConfig struct {
	Enabled           bool    `koanf:"enabled"`
	CheckIntervalMs   int     `koanf:"check_interval_ms"`
	MinRate           int     `koanf:"min_rate"`
	MaxRate           int     `koanf:"max_rate"`
	TargetUtilization float64 `koanf:"target_utilization"`
	AdjustmentStep    float64 `koanf:"adjustment_step"`
}

// AdminAPIConfig mirrors adminapi.Config's fields, except that the token
// lifetime is loaded as integer seconds (token_ttl_sec) rather than
// adminapi.Config's time.Duration token_ttl, plus a TLS section that is
// validated at load time; adminapi.Server does not read it and always
// serves plain HTTP.
type AdminAPIConfig struct {
	Addr           string    `koanf:"addr"`
	GroupID        string    `koanf:"group_id"`
	OperatorSecret string    `koanf:"operator_secret"`
	JWTKey         string    `koanf:"jwt_key"`
	TokenTTLSec    int       `koanf:"token_ttl_sec"`
	AllowedOrigins []string  `koanf:"allowed_origins"`
	TLS            TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS/SSL configuration for the admin API listener.
type TLSConfig struct {
	Enabled    bool     `koanf:"enabled"`
	CertFile   string   `koanf:"cert.file"`
	KeyFile    string   `koanf:"key.file"`
	CAFile     string   `koanf:"ca.file"`
	ClientAuth string   `koanf:"client.auth"` // none, request, require
	MinVersion string   `koanf:"min.version"` // TLS1.2, TLS1.3
	CipherSuites []string `koanf:"cipher.suites"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Path    string `koanf:"path"`
}

// ProfilerConfig holds the pprof debug endpoint configuration.
type ProfilerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// Load loads configuration from an optional YAML file and STREAMCAP_
// prefixed environment variables, the latter always taking precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		slog.Info("loaded config from file", "path", configPath)
	}

	if err := k.Load(env.Provider("STREAMCAP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "STREAMCAP_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Group.TicksPerSecond == 0 {
		cfg.Group.TicksPerSecond = 10
	}
	if cfg.Group.MaxBufferSize == 0 {
		cfg.Group.MaxBufferSize = 16 * 1024 * 1024
	}
	if cfg.Group.ThroughputSampleIntervalMs == 0 {
		cfg.Group.ThroughputSampleIntervalMs = 1000
	}
	if cfg.Group.ThroughputSampleSize == 0 {
		cfg.Group.ThroughputSampleSize = 30
	}

	if cfg.Governor.CheckIntervalMs == 0 {
		cfg.Governor.CheckIntervalMs = 5000
	}
	if cfg.Governor.MinRate == 0 {
		cfg.Governor.MinRate = 1024 * 1024
	}
	if cfg.Governor.MaxRate == 0 {
		cfg.Governor.MaxRate = 1024 * 1024 * 1024
	}
	if cfg.Governor.TargetUtilization == 0 {
		cfg.Governor.TargetUtilization = 0.80
	}
	if cfg.Governor.AdjustmentStep == 0 {
		cfg.Governor.AdjustmentStep = 0.10
	}

	if cfg.AdminAPI.Addr == "" {
		cfg.AdminAPI.Addr = ":9091"
	}
	if cfg.AdminAPI.GroupID == "" {
		cfg.AdminAPI.GroupID = "default"
	}
	if cfg.AdminAPI.TokenTTLSec == 0 {
		cfg.AdminAPI.TokenTTLSec = 24 * 3600
	}
	if len(cfg.AdminAPI.AllowedOrigins) == 0 {
		cfg.AdminAPI.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if cfg.AdminAPI.TLS.ClientAuth == "" {
		cfg.AdminAPI.TLS.ClientAuth = "none"
	}
	if cfg.AdminAPI.TLS.MinVersion == "" {
		cfg.AdminAPI.TLS.MinVersion = "TLS1.2"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Profiler.Host == "" {
		cfg.Profiler.Host = "127.0.0.1"
	}
	if cfg.Profiler.Port == 0 {
		cfg.Profiler.Port = 6060
	}
}

func validate(cfg *Config) error {
	if cfg.Group.TicksPerSecond < 1 {
		return fmt.Errorf("group.ticks_per_second must be >= 1, got %d", cfg.Group.TicksPerSecond)
	}
	if cfg.Group.MaxBufferSize < cfg.Group.BytesPerSecond {
		return fmt.Errorf("group.max_buffer_size (%d) must be >= group.bytes_per_second (%d)",
			cfg.Group.MaxBufferSize, cfg.Group.BytesPerSecond)
	}

	if cfg.Governor.Enabled && cfg.Governor.MinRate > cfg.Governor.MaxRate {
		return fmt.Errorf("governor.min_rate (%d) must be <= governor.max_rate (%d)",
			cfg.Governor.MinRate, cfg.Governor.MaxRate)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	if cfg.AdminAPI.TLS.Enabled {
		if cfg.AdminAPI.TLS.CertFile == "" || cfg.AdminAPI.TLS.KeyFile == "" {
			return fmt.Errorf("admin_api.tls cert and key files are required when TLS is enabled")
		}
		validClientAuth := map[string]bool{"none": true, "request": true, "require": true}
		if !validClientAuth[cfg.AdminAPI.TLS.ClientAuth] {
			return fmt.Errorf("invalid admin_api.tls client auth mode: %s", cfg.AdminAPI.TLS.ClientAuth)
		}
		if cfg.AdminAPI.TLS.ClientAuth == "require" && cfg.AdminAPI.TLS.CAFile == "" {
			return fmt.Errorf("admin_api.tls ca file is required when client auth is required")
		}
	}

	return nil
}
