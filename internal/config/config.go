// Package config loads harvest settings with viper.
//
// Precedence, highest first: command-line flags, environment variables,
// the config file, defaults. Environment variables use the HARVEST_ prefix
// with dots replaced by underscores (units.workers -> HARVEST_UNITS_WORKERS).
// The variable names of the earlier loader (SCRAPERS_DIR, DB_HOST, ...) are
// accepted as well.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultBaseDir   = "./units"
	DefaultManifest  = "units.txt"
	DefaultTimeout   = 1000 * time.Second
	DefaultDriver    = "sqlite3"
	DefaultDBName    = "harvest.db"
	DefaultDBHost    = "localhost"
	DefaultDBPort    = 5432
	DefaultSSLMode   = "prefer"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Validation errors.
var (
	ErrInvalidWorkers   = errors.New("units.workers must not be negative")
	ErrInvalidTimeout   = errors.New("units.timeout must not be negative")
	ErrInvalidDriver    = errors.New("database.driver must be sqlite3 or pgx")
	ErrInvalidLogLevel  = errors.New("log.level must be debug, info, warn or error")
	ErrInvalidLogFormat = errors.New("log.format must be text or json")
	ErrMissingManifest  = errors.New("units.manifest must not be empty")
)

// Config is the top-level configuration struct for harvest.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Units    UnitsConfig    `mapstructure:"units"`
	Load     LoadConfig     `mapstructure:"load"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schema   SchemaConfig   `mapstructure:"schema"`
}

// UnitsConfig controls discovery and execution of collection units.
type UnitsConfig struct {
	BaseDir  string        `mapstructure:"base_dir"`
	Manifest string        `mapstructure:"manifest"`
	Workers  int           `mapstructure:"workers"` // 0 selects max(NumCPU, 8)
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoadConfig controls persistence.
type LoadConfig struct {
	Truncate bool `mapstructure:"truncate"`
	DryRun   bool `mapstructure:"dry_run"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the snapshot store.
//
// URL wins over the discrete fields. For sqlite3, Name is the database file.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// SchemaConfig points at an optional replacement kinds declaration.
type SchemaConfig struct {
	File string `mapstructure:"file"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Units.Workers < 0 {
		return ErrInvalidWorkers
	}
	if c.Units.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if strings.TrimSpace(c.Units.Manifest) == "" {
		return ErrMissingManifest
	}

	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidDriver, c.Database.Driver)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidLogFormat, c.Log.Format)
	}
	return nil
}

// DSN returns the data source name for Database.Driver.
func (c *Config) DSN() string {
	db := c.Database
	if db.URL != "" {
		return db.URL
	}
	if db.Driver != "pgx" {
		return db.Name
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   "/" + db.Name,
	}
	if db.User != "" {
		if db.Password != "" {
			u.User = url.UserPassword(db.User, db.Password)
		} else {
			u.User = url.User(db.User)
		}
	}
	q := url.Values{}
	if db.SSLMode != "" {
		q.Set("sslmode", db.SSLMode)
	}
	if db.Schema != "" {
		// pgx passes unknown parameters to the server as run-time settings.
		q.Set("search_path", db.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedactedDSN is DSN with any password masked, for logging.
func (c *Config) RedactedDSN() string {
	dsn := c.DSN()
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w (got %q)", ErrInvalidLogLevel, name)
	}
}
