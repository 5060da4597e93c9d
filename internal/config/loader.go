package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".pstree"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for pstree settings.
const envPrefix = "PSTREE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.format", DefaultLogFormat)
	viperCfg.SetDefault("log.file", "")
	viperCfg.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	viperCfg.SetDefault("log.max_backups", DefaultLogMaxBackups)
	viperCfg.SetDefault("log.max_age_days", 0)
	viperCfg.SetDefault("log.compress", false)

	viperCfg.SetDefault("arena.capacity", DefaultArenaCapacity)

	viperCfg.SetDefault("persist.kind", DefaultPersistKind)
	viperCfg.SetDefault("persist.path", DefaultPersistPath)
	viperCfg.SetDefault("persist.s3.bucket", "")
	viperCfg.SetDefault("persist.s3.prefix", "")
	viperCfg.SetDefault("persist.s3.endpoint", "")
	viperCfg.SetDefault("persist.s3.region", DefaultS3Region)

	viperCfg.SetDefault("cache.size", DefaultCacheSize)
	viperCfg.SetDefault("store.concurrency", DefaultStoreConcurrency)
}
