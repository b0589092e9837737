// Package redis implements the Publisher interface over Redis pub/sub, the
// channel the browser-facing backend subscribes to for live progress.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes JSON payloads on a Redis channel.
type Publisher struct {
	rdb *redis.Client
}

// New builds a Publisher on an existing Redis client.
func New(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish marshals the payload and publishes it on the named channel. The
// returned ID is empty; Redis pub/sub has no message IDs.
func (p *Publisher) Publish(ctx context.Context, channel string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return "", nil
}
