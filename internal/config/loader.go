package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "harvest"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for harvest settings.
const envPrefix = "HARVEST"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// legacyEnv maps config keys to the variable names the earlier loader read.
// They are consulted after the HARVEST_ name.
var legacyEnv = map[string]string{
	"units.base_dir":    "SCRAPERS_DIR",
	"units.workers":     "SCRAPER_MAX_WORKERS",
	"units.timeout":     "SCRAPER_TIMEOUT_SECS",
	"load.truncate":     "TRUNCATE",
	"load.dry_run":      "DRY_RUN",
	"log.level":         "LOG_LEVEL",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.name":     "DB_NAME",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.schema":   "DB_SCHEMA",
}

// FlagKeys maps command-line flag names to config keys. Flags that are not
// defined on the flag set passed to Load are ignored.
var FlagKeys = map[string]string{
	"units-dir":    "units.base_dir",
	"manifest":     "units.manifest",
	"workers":      "units.workers",
	"timeout":      "units.timeout",
	"truncate":     "load.truncate",
	"dry-run":      "load.dry_run",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"db-driver":    "database.driver",
	"db-url":       "database.url",
	"metrics-file": "metrics.file",
	"schema-file":  "schema.file",
}

// Load loads configuration from file, env vars, flags and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, harvest.yaml is searched in CWD.
// Missing config file is not an error; defaults are used.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		primary := envPrefix + envKeySeparator + strings.ToUpper(strings.ReplaceAll(key, ".", envKeySeparator))
		if err := v.BindEnv(key, primary, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("units.base_dir", DefaultBaseDir)
	v.SetDefault("units.manifest", DefaultManifest)
	v.SetDefault("units.workers", 0)
	v.SetDefault("units.timeout", DefaultTimeout)

	v.SetDefault("load.truncate", true)
	v.SetDefault("load.dry_run", false)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("database.driver", DefaultDriver)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.name", DefaultDBName)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.schema", "")
	v.SetDefault("database.sslmode", DefaultSSLMode)

	v.SetDefault("metrics.file", "")
	v.SetDefault("schema.file", "")
}

// secondsToDurationHook reads bare numbers as seconds, so SCRAPER_TIMEOUT_SECS=30
// and "timeout: 30" both mean 30s.
func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch x := data.(type) {
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Second)), nil
		}
		return data, nil
	case int:
		return time.Duration(x) * time.Second, nil
	case int64:
		return time.Duration(x) * time.Second, nil
	case float64:
		return time.Duration(x * float64(time.Second)), nil
	}
	return data, nil
}
