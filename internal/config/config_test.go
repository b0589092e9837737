package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 50, cfg.Scraper.BatchSize)
	require.Equal(t, 2, cfg.Scraper.Concurrency)
	require.Equal(t, 5, cfg.Scraper.MaxAttempts)
	require.Equal(t, 240*time.Second, cfg.JobTimeout())
	require.Equal(t, 45*time.Second, cfg.FetchTimeout())
	require.Equal(t, 20_000_000, cfg.Fetch.MaxBodyBytes)
	require.Equal(t, 10, cfg.Fetch.MaxRedirects)
	require.Equal(t, "memory", cfg.Queue.Provider)
	require.Equal(t, "media-scraping", cfg.Queue.Key)
	require.Equal(t, "memory", cfg.DB.Provider)
	require.Equal(t, "scraping-progress", cfg.Progress.Channel)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
scraper:
  batch_size: 10
queue:
  provider: redis
redis:
  address: redis.internal:6379
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 10, cfg.Scraper.BatchSize)
	require.Equal(t, "redis", cfg.Queue.Provider)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Address)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDIASCRAPER_SCRAPER_CONCURRENCY", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Scraper.Concurrency)
}

func TestValidate_Failures(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Scraper.BatchSize = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Queue.Provider = "kafka"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.DB.Provider = "postgres"
	cfg.DB.DSN = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.PubSub.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Queue.Provider = "redis"
	cfg.Redis.Address = ""
	require.Error(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
