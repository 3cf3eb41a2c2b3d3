package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

// CachedResponse is a replayable copy of an earlier mutating response.
type CachedResponse struct {
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// IdempotencyStore persists responses keyed by client idempotency key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
}

// InMemIdempotencyStore is the fallback used when redis is not configured.
type InMemIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]inMemEntry
}

type inMemEntry struct {
	resp      *CachedResponse
	expiresAt time.Time
}

func NewInMemIdempotencyStore() *InMemIdempotencyStore {
	return &InMemIdempotencyStore{entries: make(map[string]inMemEntry)}
}

func (s *InMemIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.resp, true, nil
}

func (s *InMemIdempotencyStore) Set(_ context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = inMemEntry{resp: resp, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the cached response for a repeated mutating request
// carrying the same X-Idempotency-Key instead of re-executing it.
func Idempotency(store IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		if cached, ok, err := store.Get(c.Request.Context(), key); err != nil {
			logger.Warn("idempotency store lookup failed", "error", err)
		} else if ok {
			c.Header("X-Idempotent-Replay", "true")
			c.Data(cached.StatusCode, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		cw := &captureWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = cw

		c.Next()

		// Only successful outcomes are worth replaying; a failed attempt
		// should be allowed to retry for real.
		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			resp := &CachedResponse{
				StatusCode:  status,
				Body:        cw.body.Bytes(),
				ContentType: c.Writer.Header().Get("Content-Type"),
			}
			if err := store.Set(c.Request.Context(), key, resp, ttl); err != nil {
				logger.Warn("idempotency store write failed", "error", err)
			}
		}
	}
}
