package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/dreamforge/imagegen/errors"
)

var (
	globalConfig   *Config
	viperInstance  *viper.Viper
)

// Load reads the core configuration using viper, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// GetViper returns the process-wide viper instance for advanced access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadFromFile loads configuration from a specific YAML file, bypassing
// the cached global instance. Used by tests and by `imagegend config show
// --file`.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper builds the layered viper instance: defaults, then config
// files in ascending precedence, then IMAGEGEN_* environment variables.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("IMAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig walks up from the working directory looking for
// imagegen.yaml, returning the first hit.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, "imagegen.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles merges configuration files lowest to highest precedence:
// system < user < project. Env vars (bound above) always win over files.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	userDir := filepath.Join(homeDir, ".imagegen")
	os.MkdirAll(userDir, DefaultDirPermissions)

	configPaths := []string{
		"/etc/imagegen/config.yaml",
		filepath.Join(userDir, "config.yaml"),
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		configPaths = append(configPaths, projectConfig)
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		tmp := viper.New()
		tmp.SetConfigFile(path)
		tmp.SetConfigType("yaml")

		if err := tmp.ReadInConfig(); err != nil {
			continue
		}

		v.MergeConfigMap(tmp.AllSettings())
	}
}
