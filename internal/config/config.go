// Package config loads and hot-reloads the job orchestration core's
// runtime configuration.
package config

import (
	"time"

	"github.com/dreamforge/imagegen/errors"
)

// Config is the root configuration struct, unmarshaled from viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Pool       PoolConfig       `mapstructure:"pool" yaml:"pool" json:"pool"`
	ModeConfig ModeConfigConfig `mapstructure:"modeconfig" yaml:"modeconfig" json:"modeconfig"`
	FileRef    FileRefConfig    `mapstructure:"fileref" yaml:"fileref" json:"fileref"`
	Dream      DreamConfig      `mapstructure:"dream" yaml:"dream" json:"dream"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage" json:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// ServerConfig controls the WS/HTTP bind and shutdown behavior.
type ServerConfig struct {
	Port            int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// PoolConfig controls the worker pool and its priority queue.
type PoolConfig struct {
	Workers          int `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueMax         int `mapstructure:"queue_max" yaml:"queue_max" json:"queue_max"`
	JobTimeoutSecond int `mapstructure:"job_timeout_seconds" yaml:"job_timeout_seconds" json:"job_timeout_seconds"`
}

// ModeConfigConfig locates the mode document and model/LoRA roots.
type ModeConfigConfig struct {
	Path      string `mapstructure:"path" yaml:"path" json:"path"`
	ModelRoot string `mapstructure:"model_root" yaml:"model_root" json:"model_root"`
	LoraRoot  string `mapstructure:"lora_root" yaml:"lora_root" json:"lora_root"`
	CacheRoot string `mapstructure:"cache_root" yaml:"cache_root" json:"cache_root"`
}

// FileRefConfig controls the file-ref store's TTL and sweep cadence.
type FileRefConfig struct {
	TTLSeconds           int `mapstructure:"ttl_seconds" yaml:"ttl_seconds" json:"ttl_seconds"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds" json:"sweep_interval_seconds"`
}

// DreamConfig bounds the dream controller's tick behavior.
type DreamConfig struct {
	DefaultIntervalMS int     `mapstructure:"default_interval_ms" yaml:"default_interval_ms" json:"default_interval_ms"`
	MaxDurationHours  float64 `mapstructure:"max_duration_hours" yaml:"max_duration_hours" json:"max_duration_hours"`
	MinTemperature    float64 `mapstructure:"min_temperature" yaml:"min_temperature" json:"min_temperature"`
	MaxTemperature    float64 `mapstructure:"max_temperature" yaml:"max_temperature" json:"max_temperature"`
}

// StorageConfig locates the content-addressed output blob store.
type StorageConfig struct {
	BlobRoot string `mapstructure:"blob_root" yaml:"blob_root" json:"blob_root"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// FileRefTTL returns the configured file-ref TTL as a time.Duration.
func (c FileRefConfig) FileRefTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SweepInterval returns the configured sweep cadence as a time.Duration.
func (c FileRefConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ShutdownTimeoutDuration returns the configured shutdown grace period.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// JobTimeout returns the per-job watchdog duration.
func (c PoolConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSecond) * time.Second
}

// Validate rejects a config whose values could never produce a working
// process, catching a typo'd zero or negative setting before it reaches
// the collaborators that assume a sane default.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Pool.Workers <= 0 {
		return errors.Newf("pool.workers must be positive, got %d", c.Pool.Workers)
	}
	if c.Pool.QueueMax <= 0 {
		return errors.Newf("pool.queue_max must be positive, got %d", c.Pool.QueueMax)
	}
	if c.ModeConfig.Path == "" {
		return errors.New("modeconfig.path must be set")
	}
	if c.FileRef.TTLSeconds <= 0 {
		return errors.Newf("fileref.ttl_seconds must be positive, got %d", c.FileRef.TTLSeconds)
	}
	if c.Storage.BlobRoot == "" {
		return errors.New("storage.blob_root must be set")
	}
	if c.Dream.MaxTemperature <= c.Dream.MinTemperature {
		return errors.Newf("dream.max_temperature (%v) must exceed dream.min_temperature (%v)", c.Dream.MaxTemperature, c.Dream.MinTemperature)
	}
	return nil
}
