package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsubapi "cloud.google.com/go/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/api"
	"github.com/scrapeworks/mediascraper/internal/batch"
	"github.com/scrapeworks/mediascraper/internal/clock/system"
	"github.com/scrapeworks/mediascraper/internal/config"
	"github.com/scrapeworks/mediascraper/internal/extract"
	"github.com/scrapeworks/mediascraper/internal/fetch"
	iduuid "github.com/scrapeworks/mediascraper/internal/id/uuid"
	"github.com/scrapeworks/mediascraper/internal/logging"
	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/metrics"
	"github.com/scrapeworks/mediascraper/internal/progress"
	"github.com/scrapeworks/mediascraper/internal/progress/sinks"
	pubsubpub "github.com/scrapeworks/mediascraper/internal/publisher/pubsub"
	redispub "github.com/scrapeworks/mediascraper/internal/publisher/redis"
	memoryqueue "github.com/scrapeworks/mediascraper/internal/queue/memory"
	"github.com/scrapeworks/mediascraper/internal/queue/redisq"
	"github.com/scrapeworks/mediascraper/internal/reconcile"
	"github.com/scrapeworks/mediascraper/internal/scheduler"
	memorystore "github.com/scrapeworks/mediascraper/internal/store/memory"
	"github.com/scrapeworks/mediascraper/internal/store/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the scraping service",
		Long: `Runs the HTTP API, the job scheduler workers, and the progress hub
until interrupted. Jobs submitted through the API are processed in bounded
batches with per-URL error isolation.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics.Init()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.Queue.Provider == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
	}

	queue := buildQueue(ctx, cfg, rdb, logger)

	hub, closeHub, err := buildProgressHub(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer closeHub()

	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBodySize:  cfg.Fetch.MaxBodyBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})
	gate := batch.NewMemoryGate(cfg.Scraper.MaxHeapMB, time.Duration(cfg.Scraper.CooldownSec)*time.Second, logger)
	proc := batch.New(fetcher, extract.New(logger), gate, logger)

	sched := scheduler.New(
		scheduler.Config{
			BatchSize:   cfg.Scraper.BatchSize,
			Concurrency: cfg.Scraper.Concurrency,
			MaxAttempts: cfg.Scraper.MaxAttempts,
			BackoffBase: time.Duration(cfg.Scraper.BackoffInitialMs) * time.Millisecond,
			BackoffMax:  time.Duration(cfg.Scraper.BackoffMaxMs) * time.Millisecond,
			JobTimeout:  cfg.JobTimeout(),
			BatchPause:  time.Duration(cfg.Scraper.BatchPauseMs) * time.Millisecond,
		},
		queue,
		proc,
		hub,
		system.New(),
		iduuid.New(),
		reconcile.New(store, logger),
		logger,
	)
	go sched.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(store, sched, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config) (media.Store, func(), error) {
	if cfg.DB.Provider == "postgres" {
		st, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return memorystore.New(system.New()), func() {}, nil
}

func buildQueue(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *zap.Logger) media.Queue {
	if cfg.Queue.Provider == "redis" {
		q := redisq.New(rdb, redisq.Config{
			Key:      cfg.Queue.Key,
			LeaseTTL: time.Duration(cfg.Queue.LeaseSec) * time.Second,
		}, logger)
		go q.Reap(ctx)
		return q
	}
	return memoryqueue.NewQueue(cfg.Queue.Depth)
}

func buildProgressHub(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *zap.Logger) (*progress.Hub, func(), error) {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	hubSinks := []progress.Sink{sinks.NewLogSink(logger), promSink}

	var closePubsub func()
	if rdb != nil {
		hubSinks = append(hubSinks, sinks.NewPublishSink(redispub.New(rdb), cfg.Progress.Channel, logger))
	}
	if cfg.PubSub.Enabled {
		client, err := pubsubapi.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub client: %w", err)
		}
		publisher := client.Publisher(cfg.PubSub.TopicID)
		hubSinks = append(hubSinks, sinks.NewPublishSink(pubsubpub.New(publisher), cfg.Progress.Channel, logger))
		closePubsub = func() {
			publisher.Stop()
			_ = client.Close()
		}
	}

	hub := progress.NewHub(progress.Config{Logger: logger}, hubSinks...)
	closeAll := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close incomplete", zap.Error(err))
		}
		if closePubsub != nil {
			closePubsub()
		}
	}
	return hub, closeAll, nil
}
