package service

import (
	"context"
	"sync"
	"time"
)

// UsageStore is the in-memory UsageRepo used when redis is not configured.
type UsageStore struct {
	mu          sync.RWMutex
	dailyVolume map[string]float64
	dailyOrders map[string]int
}

func NewUsageStore() *UsageStore {
	return &UsageStore{
		dailyVolume: make(map[string]float64),
		dailyOrders: make(map[string]int),
	}
}

func (s *UsageStore) GetDailyUsage(ctx context.Context, key string) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := s.makeKey(key)
	return s.dailyOrders[k], s.dailyVolume[k], nil
}

func (s *UsageStore) AddDailyUsage(ctx context.Context, key string, orders int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.makeKey(key)
	s.dailyVolume[k] += amount
	s.dailyOrders[k] += orders
	return nil
}

func (s *UsageStore) makeKey(key string) string {
	// Buckets split on the UTC date.
	return key + ":" + time.Now().UTC().Format("2006-01-02")
}
