package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func measurementKey(sessionID string) string {
	return fmt.Sprintf("measure:session:%s:normalized", sessionID)
}

func recommendationKey(sessionID string) string {
	return fmt.Sprintf("measure:session:%s:recommendations", sessionID)
}

// Latest normalized record for a session. A miss returns nil, false, nil.
func (c *Cache) GetMeasurement(ctx context.Context, sessionID string) (*domain.NormalizedMeasurement, bool, error) {
	var m domain.NormalizedMeasurement
	found, err := c.get(ctx, measurementKey(sessionID), &m)
	if err != nil || !found {
		return nil, found, err
	}
	return &m, true, nil
}

func (c *Cache) SetMeasurement(ctx context.Context, m *domain.NormalizedMeasurement) error {
	return c.set(ctx, measurementKey(m.SessionID), m)
}

func (c *Cache) GetRecommendations(ctx context.Context, sessionID string) (*domain.RecommendationResponse, bool, error) {
	var resp domain.RecommendationResponse
	found, err := c.get(ctx, recommendationKey(sessionID), &resp)
	if err != nil || !found {
		return nil, found, err
	}
	return &resp, true, nil
}

func (c *Cache) SetRecommendations(ctx context.Context, resp *domain.RecommendationResponse) error {
	return c.set(ctx, recommendationKey(resp.SessionID), resp)
}

// Clear session cache: used when a new measurement replaces the old one.
// Only the session's own keys are removed.
func (c *Cache) ClearSession(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, measurementKey(sessionID), recommendationKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("cache delete session %s: %w", sessionID, err)
	}
	return nil
}

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) get(ctx context.Context, key string, v any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(val, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}
	return nil
}
