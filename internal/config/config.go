package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Cursor  CursorConfig  `yaml:"cursor" mapstructure:"cursor"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ArchiveConfig configures the post archive client and crawl pacing.
type ArchiveConfig struct {
	BaseURL                string  `yaml:"base_url" mapstructure:"base_url"`
	Subreddit              string  `yaml:"subreddit" mapstructure:"subreddit"`
	PageSize               int     `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMs            int     `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	ErrorBackoffSecs       int     `yaml:"error_backoff_secs" mapstructure:"error_backoff_secs"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	TimeoutSecs            int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond      float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent              string  `yaml:"user_agent" mapstructure:"user_agent"`
	StartAfter             string  `yaml:"start_after" mapstructure:"start_after"`
}

// PageDelay is the courtesy delay between pages.
func (a ArchiveConfig) PageDelay() time.Duration {
	return time.Duration(a.PageDelayMs) * time.Millisecond
}

// ErrorBackoff is the delay before retrying a failed page.
func (a ArchiveConfig) ErrorBackoff() time.Duration {
	return time.Duration(a.ErrorBackoffSecs) * time.Second
}

// Timeout is the per-request HTTP timeout.
func (a ArchiveConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// StartAfterTime parses StartAfter. An empty value is the zero time.
func (a ArchiveConfig) StartAfterTime() (time.Time, error) {
	return ParseTimestamp(a.StartAfter)
}

// IngestConfig configures the crawl loop and outcome writes.
type IngestConfig struct {
	MaxPosts              int `yaml:"max_posts" mapstructure:"max_posts"`
	TopUnresolved         int `yaml:"top_unresolved" mapstructure:"top_unresolved"`
	WriteMaxAttempts      int `yaml:"write_max_attempts" mapstructure:"write_max_attempts"`
	WriteInitialBackoffMs int `yaml:"write_initial_backoff_ms" mapstructure:"write_initial_backoff_ms"`
	WriteMaxBackoffMs     int `yaml:"write_max_backoff_ms" mapstructure:"write_max_backoff_ms"`
}

// ResolveConfig configures school name resolution.
type ResolveConfig struct {
	AbbreviationsFirst bool   `yaml:"abbreviations_first" mapstructure:"abbreviations_first"`
	AliasesFile        string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// CursorConfig selects where the crawl cursor lives.
type CursorConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Name     string `yaml:"name" mapstructure:"name"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	RedisKey string `yaml:"redis_key" mapstructure:"redis_key"`
}

// MetricsConfig configures the optional metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("archive.base_url", "https://api.pullpush.io/reddit/search/submission/")
	v.SetDefault("archive.subreddit", "collegeresults")
	v.SetDefault("archive.page_size", 100)
	v.SetDefault("archive.page_delay_ms", 1000)
	v.SetDefault("archive.error_backoff_secs", 30)
	v.SetDefault("archive.max_consecutive_failures", 0)
	v.SetDefault("archive.timeout_secs", 30)
	v.SetDefault("archive.requests_per_second", 1.0)
	v.SetDefault("archive.user_agent", "admissions-ingest/1.0")
	v.SetDefault("archive.start_after", "2019-01-01T00:00:00Z")
	v.SetDefault("ingest.max_posts", 0)
	v.SetDefault("ingest.top_unresolved", 25)
	v.SetDefault("ingest.write_max_attempts", 3)
	v.SetDefault("ingest.write_initial_backoff_ms", 200)
	v.SetDefault("ingest.write_max_backoff_ms", 5000)
	v.SetDefault("resolve.abbreviations_first", true)
	v.SetDefault("resolve.aliases_file", "")
	v.SetDefault("cursor.backend", "store")
	v.SetDefault("cursor.name", "archive")
	v.SetDefault("cursor.redis_url", "")
	v.SetDefault("cursor.redis_key", "admissions-ingest:cursor")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "store" (any command touching the database) and "crawl".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "crawl":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateCrawl()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateCrawl() []string {
	var errs []string
	a := c.Archive
	if a.BaseURL == "" {
		errs = append(errs, "archive.base_url is required")
	}
	if a.Subreddit == "" {
		errs = append(errs, "archive.subreddit is required")
	}
	if a.PageSize < 1 || a.PageSize > 1000 {
		errs = append(errs, "archive.page_size must be between 1 and 1000")
	}
	if a.PageDelayMs < 0 || a.ErrorBackoffSecs < 0 {
		errs = append(errs, "archive delays must be >= 0")
	}
	if a.MaxConsecutiveFailures < 0 {
		errs = append(errs, "archive.max_consecutive_failures must be >= 0")
	}
	if a.RequestsPerSecond <= 0 {
		errs = append(errs, "archive.requests_per_second must be > 0")
	}
	if _, err := a.StartAfterTime(); err != nil {
		errs = append(errs, "archive.start_after must be RFC3339 or epoch seconds")
	}
	if c.Ingest.MaxPosts < 0 {
		errs = append(errs, "ingest.max_posts must be >= 0")
	}
	switch c.Cursor.Backend {
	case "store":
	case "redis":
		if c.Cursor.RedisURL == "" {
			errs = append(errs, "cursor.redis_url is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cursor.backend must be store or redis, got %q", c.Cursor.Backend))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
