package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix = "rollcall:token:"
	liveKeyPrefix  = "rollcall:token:live:"
)

// RedisStore shares tokens across instances. Retired tokens are bounded by
// key expiry rather than a count: each key lives until its grace deadline
// plus the configured retention, so Prune has nothing to do.
type RedisStore struct {
	client    *redis.Client
	graceSkew time.Duration
	retention time.Duration
}

// NewRedis builds a Redis-backed store.
func NewRedis(client *redis.Client, graceSkew, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, graceSkew: graceSkew, retention: retention}
}

func tokenKey(sessionID domain.SessionID, value string) string {
	sum := sha256.Sum256([]byte(value))
	return tokenKeyPrefix + sessionID.String() + ":" + hex.EncodeToString(sum[:])
}

func liveKey(sessionID domain.SessionID) string {
	return liveKeyPrefix + sessionID.String()
}

func (s *RedisStore) keyTTL(t *models.Token, now time.Time) time.Duration {
	ttl := t.GraceDeadline(s.graceSkew).Add(s.retention).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) Rotate(ctx context.Context, next *models.Token, now time.Time) (*models.Token, error) {
	prev, err := s.Live(ctx, next.SessionID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	nextJSON, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	pipe := s.client.TxPipeline()
	nextTTL := s.keyTTL(next, now)
	pipe.Set(ctx, tokenKey(next.SessionID, next.Value), nextJSON, nextTTL)
	pipe.Set(ctx, liveKey(next.SessionID), next.Value, nextTTL)
	if prev != nil {
		prev.Retire(now)
		prevJSON, err := json.Marshal(prev)
		if err != nil {
			return nil, fmt.Errorf("marshal token: %w", err)
		}
		pipe.Set(ctx, tokenKey(prev.SessionID, prev.Value), prevJSON, s.keyTTL(prev, now))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	return prev, nil
}

func (s *RedisStore) Find(ctx context.Context, sessionID domain.SessionID, value string) (*models.Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(sessionID, value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	var t models.Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	// key is a digest; guard against a collision across sessions anyway
	if t.SessionID != sessionID || t.Value != value {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *RedisStore) Live(ctx context.Context, sessionID domain.SessionID) (*models.Token, error) {
	value, err := s.client.Get(ctx, liveKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get live token: %w", err)
	}
	return s.Find(ctx, sessionID, value)
}

func (s *RedisStore) RetireLive(ctx context.Context, sessionID domain.SessionID, now time.Time) error {
	live, err := s.Live(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	live.Retire(now)
	raw, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(sessionID, live.Value), raw, s.keyTTL(live, now))
	pipe.Del(ctx, liveKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retire token: %w", err)
	}
	return nil
}

// Prune is a no-op: Redis expires retired tokens on its own.
func (s *RedisStore) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}
