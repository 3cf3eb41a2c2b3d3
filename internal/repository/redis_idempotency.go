package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore backs the idempotency middleware with redis so
// replay protection holds across gateway restarts.
type RedisIdempotencyStore struct {
	client *RedisClient
	prefix string
}

func NewRedisIdempotencyStore(client *RedisClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idem:"}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*middleware.CachedResponse, bool, error) {
	raw, err := s.client.Client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	resp, err := decodeCachedResponse(raw)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, resp *middleware.CachedResponse, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return s.client.Client.Set(ctx, s.prefix+key, encodeCachedResponse(resp), ttl).Err()
}

func encodeCachedResponse(resp *middleware.CachedResponse) string {
	wire := map[string]interface{}{
		"status_code":  resp.StatusCode,
		"body":         base64.StdEncoding.EncodeToString(resp.Body),
		"content_type": resp.ContentType,
	}
	data, _ := json.Marshal(wire)
	return string(data)
}

func decodeCachedResponse(raw string) (*middleware.CachedResponse, error) {
	var wire struct {
		StatusCode  int    `json:"status_code"`
		Body        string `json:"body"`
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}
	body, _ := base64.StdEncoding.DecodeString(wire.Body)
	return &middleware.CachedResponse{
		StatusCode:  wire.StatusCode,
		Body:        body,
		ContentType: wire.ContentType,
	}, nil
}
