package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisUsageRepo tracks daily order counts and notional volume in redis so
// risk accounting survives restarts.
type RedisUsageRepo struct {
	client *RedisClient
}

func NewRedisUsageRepo(client *RedisClient) *RedisUsageRepo {
	return &RedisUsageRepo{client: client}
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context, key string) (int, float64, error) {
	today := time.Now().UTC().Format("2006-01-02")
	keyVol := fmt.Sprintf("usage:%s:%s:volume", key, today)
	keyCount := fmt.Sprintf("usage:%s:%s:count", key, today)

	pipe := r.client.Client.Pipeline()
	volCmd := pipe.Get(ctx, keyVol)
	countCmd := pipe.Get(ctx, keyCount)
	_, err := pipe.Exec(ctx)

	if err != nil && err != redis.Nil {
		return 0, 0, err
	}

	vol, _ := volCmd.Float64()
	count, _ := countCmd.Int()

	return count, vol, nil
}

func (r *RedisUsageRepo) AddDailyUsage(ctx context.Context, key string, orders int, amount float64) error {
	today := time.Now().UTC().Format("2006-01-02")
	keyVol := fmt.Sprintf("usage:%s:%s:volume", key, today)
	keyCount := fmt.Sprintf("usage:%s:%s:count", key, today)

	pipe := r.client.Client.Pipeline()
	pipe.IncrByFloat(ctx, keyVol, amount)
	pipe.IncrBy(ctx, keyCount, int64(orders))

	// Two days covers every timezone's view of "today".
	pipe.Expire(ctx, keyVol, 48*time.Hour)
	pipe.Expire(ctx, keyCount, 48*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}
