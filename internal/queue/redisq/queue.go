// Package redisq implements the job queue on Redis. Jobs live in a list;
// dequeued jobs are leased in a sorted set scored by deadline, and a reaper
// requeues leases that expire before Ack. The result is at-least-once
// delivery: a worker crash mid-job leads to redelivery, never loss.
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Config controls queue keys and lease behavior.
type Config struct {
	Key      string        // base list key, e.g. "media-scraping"
	LeaseTTL time.Duration // how long a dequeued job may run before redelivery
}

const (
	defaultLeaseTTL = 5 * time.Minute
	popTimeout      = 5 * time.Second
	reapInterval    = 30 * time.Second
)

// Queue is a Redis-backed job queue.
type Queue struct {
	rdb    *redis.Client
	key    string
	lease  string
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a Queue on an existing Redis client.
func New(rdb *redis.Client, cfg Config, logger *zap.Logger) *Queue {
	if cfg.Key == "" {
		cfg.Key = "media-scraping"
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		rdb:    rdb,
		key:    cfg.Key,
		lease:  cfg.Key + ":lease",
		ttl:    cfg.LeaseTTL,
		logger: logger,
	}
}

// Enqueue pushes the job onto the list.
func (q *Queue) Enqueue(ctx context.Context, job media.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush job: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available, then records a lease for it. The
// loop retries on pop timeouts so the call honors context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (media.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return media.Job{}, fmt.Errorf("dequeue canceled: %w", err)
		}
		payload, err := q.rdb.BRPop(ctx, popTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return media.Job{}, fmt.Errorf("brpop: %w", err)
		}
		// BRPop returns [key, value].
		raw := payload[1]
		deadline := float64(time.Now().Add(q.ttl).UnixMilli())
		if err := q.rdb.ZAdd(ctx, q.lease, redis.Z{Score: deadline, Member: raw}).Err(); err != nil {
			q.logger.Warn("lease record failed, job will not be redelivered on crash", zap.Error(err))
		}
		var job media.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.rdb.ZRem(ctx, q.lease, raw)
			q.logger.Error("dropping undecodable job payload", zap.Error(err))
			continue
		}
		return job, nil
	}
}

// Ack releases the lease once the job reached a terminal outcome.
func (q *Queue) Ack(ctx context.Context, job media.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.ZRem(ctx, q.lease, string(payload)).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Reap runs until the context ends, periodically moving expired leases back
// onto the list. Run it in one goroutine per worker process; requeueing the
// same payload twice is tolerated downstream via upsert semantics.
func (q *Queue) Reap(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.reapExpired(ctx)
		}
	}
}

func (q *Queue) reapExpired(ctx context.Context) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	expired, err := q.rdb.ZRangeByScore(ctx, q.lease, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		q.logger.Warn("lease scan failed", zap.Error(err))
		return
	}
	for _, raw := range expired {
		removed, err := q.rdb.ZRem(ctx, q.lease, raw).Result()
		if err != nil || removed == 0 {
			// Another reaper got there first.
			continue
		}
		if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
			q.logger.Error("requeue of expired lease failed", zap.Error(err))
			continue
		}
		q.logger.Warn("requeued stalled job", zap.String("payload", raw))
	}
}
