package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/risk/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const (
	keyPrefix       = "rollcall:risk:"
	announcedPrefix = "rollcall:risk-announced:"
)

// RedisCache shares risk profiles across instances as JSON values with a TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func key(pid domain.ParticipantID) string {
	return keyPrefix + pid.String()
}

func (c *RedisCache) Get(ctx context.Context, pid domain.ParticipantID) (*models.Profile, error) {
	raw, err := c.client.Get(ctx, key(pid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get risk profile: %w", err)
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode risk profile: %w", err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, p *models.Profile, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode risk profile: %w", err)
	}
	if err := c.client.Set(ctx, key(p.ParticipantID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("set risk profile: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, pid domain.ParticipantID) error {
	if err := c.client.Del(ctx, key(pid)).Err(); err != nil {
		return fmt.Errorf("delete risk profile: %w", err)
	}
	return nil
}

// AnnouncedLevel returns the last level published for pid. The key has no
// TTL so it outlives the cached profile.
func (c *RedisCache) AnnouncedLevel(ctx context.Context, pid domain.ParticipantID) (models.Level, error) {
	raw, err := c.client.Get(ctx, announcedPrefix+pid.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get announced risk level: %w", err)
	}
	return models.Level(raw), nil
}

func (c *RedisCache) SetAnnouncedLevel(ctx context.Context, pid domain.ParticipantID, level models.Level) error {
	if err := c.client.Set(ctx, announcedPrefix+pid.String(), string(level), 0).Err(); err != nil {
		return fmt.Errorf("set announced risk level: %w", err)
	}
	return nil
}
