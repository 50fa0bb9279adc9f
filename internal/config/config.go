package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"forecast-explorer/internal/logging"
)

// Source kinds understood by the loader.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Source   SourceConfig   `mapstructure:"source"`
	Database DatabaseConfig `mapstructure:"database"`
	Reload   ReloadConfig   `mapstructure:"reload"`
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Power    PowerConfig    `mapstructure:"power"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig selects where forecast records come from.
type SourceConfig struct {
	Kind     string        `mapstructure:"kind"`
	CSVPath  string        `mapstructure:"csv_path"`
	StepUnit time.Duration `mapstructure:"step_unit"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ImportLockKey   int64         `mapstructure:"import_lock_key"`
	ImportBatchSize int           `mapstructure:"import_batch_size"`
}

// ReloadConfig governs how often the record snapshot is refreshed.
type ReloadConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ServerConfig covers the dashboard listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	Mode              string        `mapstructure:"mode"`
}

// CacheConfig enables the Redis figure cache when URL is set.
type CacheConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// ChartConfig sets rendered image dimensions.
type ChartConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// PowerConfig drives the power reading converter.
type PowerConfig struct {
	Column    string `mapstructure:"column"`
	MaxYTicks int    `mapstructure:"max_y_ticks"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FCEXPLORER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fcexplorer")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("source.kind", SourceCSV)
	v.SetDefault("source.csv_path", "predicciones.csv")
	v.SetDefault("source.step_unit", "1h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.import_lock_key", int64(0x66637870))
	v.SetDefault("database.import_batch_size", 500)

	v.SetDefault("reload.interval", "5m")
	v.SetDefault("reload.align_to_bucket", false)
	v.SetDefault("reload.startup_delay", "0s")

	v.SetDefault("server.addr", ":8850")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("server.mode", "release")

	v.SetDefault("cache.ttl", "30s")

	v.SetDefault("chart.width", 1280)
	v.SetDefault("chart.height", 720)

	v.SetDefault("power.column", "P1")
	v.SetDefault("power.max_y_ticks", 6)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.CSVPath == "" {
			return fmt.Errorf("source.csv_path is required when source.kind is csv")
		}
	case SourcePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when source.kind is postgres")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceCSV, SourcePostgres, c.Source.Kind)
	}
	if c.Source.StepUnit < 0 {
		return fmt.Errorf("source.step_unit cannot be negative")
	}
	if c.Reload.Interval <= 0 {
		return fmt.Errorf("reload.interval must be greater than zero")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart.width and chart.height must be greater than zero")
	}
	if c.Power.MaxYTicks < 2 {
		return fmt.Errorf("power.max_y_ticks must be at least 2")
	}
	if c.Database.ImportBatchSize <= 0 {
		return fmt.Errorf("database.import_batch_size must be greater than zero")
	}
	return nil
}

// ResolveStepUnit returns the configured horizon length, defaulting to one hour.
func (c *Config) ResolveStepUnit() time.Duration {
	if c.Source.StepUnit > 0 {
		return c.Source.StepUnit
	}
	return time.Hour
}
