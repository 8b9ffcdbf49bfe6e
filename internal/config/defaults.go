package config

import "github.com/spf13/viper"

// DefaultDirPermissions is used when creating the user config directory.
const DefaultDirPermissions = 0o755

// SetDefaults installs the default value for every config key. Defaults
// mirror the values named in the specification (queueMax=64, fileRef
// ttl=300s, dream interval=5000ms, ...).
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("pool.workers", 1)
	v.SetDefault("pool.queue_max", 64)
	v.SetDefault("pool.job_timeout_seconds", 120)

	v.SetDefault("modeconfig.path", "./modes.yaml")
	v.SetDefault("modeconfig.model_root", "./models")
	v.SetDefault("modeconfig.lora_root", "./loras")
	v.SetDefault("modeconfig.cache_root", "./models/.cache")

	v.SetDefault("fileref.ttl_seconds", 300)
	v.SetDefault("fileref.sweep_interval_seconds", 30)

	v.SetDefault("dream.default_interval_ms", 5000)
	v.SetDefault("dream.max_duration_hours", 24.0)
	v.SetDefault("dream.min_temperature", 0.0)
	v.SetDefault("dream.max_temperature", 1.0)

	v.SetDefault("storage.blob_root", "./storage")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
