// Package config loads the daemon configuration from YAML with defaults,
// environment overrides and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// Config is the application-wide configuration. Replacing the object is
// the hot-reload mechanism; components pick up the new values on their
// next tick.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`

	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	API       APIConfig       `mapstructure:"api"`
}

// MonitorConfig configures the collector orchestrator.
type MonitorConfig struct {
	CollectionInterval time.Duration `mapstructure:"collection_interval"`
	AnalysisInterval   time.Duration `mapstructure:"analysis_interval"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	RetentionPeriod    time.Duration `mapstructure:"retention_period"`
	MaxSnapshots       int           `mapstructure:"max_snapshots"`
	AnomalyThreshold   float64       `mapstructure:"anomaly_threshold"`
	DiskPath           string        `mapstructure:"disk_path"`
}

// OptimizerConfig configures the optimization engine.
type OptimizerConfig struct {
	OptimizationInterval        time.Duration      `mapstructure:"optimization_interval"`
	ThresholdAdjustmentInterval time.Duration      `mapstructure:"threshold_adjustment_interval"`
	MaxHistory                  int                `mapstructure:"max_history"`
	Thresholds                  metrics.Thresholds `mapstructure:"thresholds"`
	RulesFile                   string             `mapstructure:"rules_file"`
}

// APIConfig configures the HTTP query surface.
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads the configuration file, applying defaults and MIHARI_*
// environment overrides. An empty path loads pure defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MIHARI")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the stock configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_path", "stdout")

	v.SetDefault("monitor.collection_interval", "5s")
	v.SetDefault("monitor.analysis_interval", "60s")
	v.SetDefault("monitor.cleanup_interval", "1h")
	v.SetDefault("monitor.retention_period", "168h")
	v.SetDefault("monitor.max_snapshots", 100000)
	v.SetDefault("monitor.anomaly_threshold", 2.0)
	v.SetDefault("monitor.disk_path", "/")

	v.SetDefault("optimizer.optimization_interval", "5m")
	v.SetDefault("optimizer.threshold_adjustment_interval", "30m")
	v.SetDefault("optimizer.max_history", 1000)
	v.SetDefault("optimizer.thresholds.cpu", 80.0)
	v.SetDefault("optimizer.thresholds.memory", 85.0)
	v.SetDefault("optimizer.thresholds.disk", 90.0)
	v.SetDefault("optimizer.thresholds.network_errors", 100.0)
	v.SetDefault("optimizer.thresholds.battery_low", 20.0)
	v.SetDefault("optimizer.rules_file", "")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", ":8930")
}

// Validate checks configuration invariants.
func Validate(cfg *Config) error {
	if cfg.Monitor.CollectionInterval <= 0 {
		return fmt.Errorf("monitor.collection_interval must be positive")
	}
	if cfg.Monitor.AnalysisInterval <= 0 {
		return fmt.Errorf("monitor.analysis_interval must be positive")
	}
	if cfg.Monitor.CleanupInterval <= 0 {
		return fmt.Errorf("monitor.cleanup_interval must be positive")
	}
	if cfg.Monitor.RetentionPeriod <= 0 {
		return fmt.Errorf("monitor.retention_period must be positive")
	}
	if cfg.Monitor.MaxSnapshots < 1 {
		return fmt.Errorf("monitor.max_snapshots must be at least 1")
	}
	if cfg.Monitor.AnomalyThreshold <= 0 {
		return fmt.Errorf("monitor.anomaly_threshold must be positive")
	}

	if cfg.Optimizer.OptimizationInterval <= 0 {
		return fmt.Errorf("optimizer.optimization_interval must be positive")
	}
	if cfg.Optimizer.ThresholdAdjustmentInterval <= 0 {
		return fmt.Errorf("optimizer.threshold_adjustment_interval must be positive")
	}
	if cfg.Optimizer.MaxHistory < 1 {
		return fmt.Errorf("optimizer.max_history must be at least 1")
	}
	t := cfg.Optimizer.Thresholds
	for name, val := range map[string]float64{
		"cpu": t.CPU, "memory": t.Memory, "disk": t.Disk,
	} {
		if val <= 0 || val > 100 {
			return fmt.Errorf("optimizer.thresholds.%s must be in (0, 100]", name)
		}
	}
	if t.NetworkErrors < 0 {
		return fmt.Errorf("optimizer.thresholds.network_errors cannot be negative")
	}
	if t.BatteryLow < 0 || t.BatteryLow > 100 {
		return fmt.Errorf("optimizer.thresholds.battery_low must be in [0, 100]")
	}

	if cfg.API.Enabled && cfg.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when API is enabled")
	}

	return nil
}
