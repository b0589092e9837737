// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Queue     QueueConfig     `mapstructure:"queue"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the scheduler and batch processor.
type ScraperConfig struct {
	BatchSize        int `mapstructure:"batch_size"`
	Concurrency      int `mapstructure:"concurrency"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	JobTimeoutSec    int `mapstructure:"job_timeout_seconds"`
	BatchPauseMs     int `mapstructure:"batch_pause_ms"`
	MaxHeapMB        int `mapstructure:"max_heap_mb"`
	CooldownSec      int `mapstructure:"cooldown_seconds"`
}

// FetchConfig configures single-page retrieval.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
	UserAgent      string `mapstructure:"user_agent"`
}

// QueueConfig selects and sizes the job queue backend.
type QueueConfig struct {
	Provider string `mapstructure:"provider"` // "memory" or "redis"
	Depth    int    `mapstructure:"depth"`
	Key      string `mapstructure:"key"`
	LeaseSec int    `mapstructure:"lease_seconds"`
}

// DBConfig controls access to the relational media store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // "postgres" or "memory"
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig configures the Redis connection shared by the queue and the
// progress publish channel.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PubSubConfig optionally enables progress publication to GCP Pub/Sub.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ProgressConfig names the advisory progress channel.
type ProgressConfig struct {
	Channel string `mapstructure:"channel"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIASCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.batch_size", 50)
	v.SetDefault("scraper.concurrency", 2)
	v.SetDefault("scraper.max_attempts", 5)
	v.SetDefault("scraper.backoff_initial_ms", 2000)
	v.SetDefault("scraper.backoff_max_ms", 60000)
	v.SetDefault("scraper.job_timeout_seconds", 240)
	v.SetDefault("scraper.batch_pause_ms", 100)
	v.SetDefault("scraper.max_heap_mb", 500)
	v.SetDefault("scraper.cooldown_seconds", 5)
	v.SetDefault("fetch.timeout_seconds", 45)
	v.SetDefault("fetch.max_body_bytes", 20_000_000)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.depth", 64)
	v.SetDefault("queue.key", "media-scraping")
	v.SetDefault("queue.lease_seconds", 300)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("progress.channel", "scraping-progress")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BatchSize <= 0 {
		return fmt.Errorf("scraper.batch_size must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.MaxAttempts <= 0 {
		return fmt.Errorf("scraper.max_attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	switch c.Queue.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue provider %q", c.Queue.Provider)
	}
	switch c.DB.Provider {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown db provider %q", c.DB.Provider)
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Queue.Provider == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("redis.address must be set when queue.provider is redis")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	return nil
}

// JobTimeout returns the absolute per-job deadline.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Scraper.JobTimeoutSec) * time.Second
}

// FetchTimeout returns the per-fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
