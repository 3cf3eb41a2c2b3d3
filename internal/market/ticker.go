package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second // Keep-alive interval
)

// LastTrade is the most recent trade observed for one product.
type LastTrade struct {
	ProductID string
	Price     decimal.Decimal
	Seen      time.Time
}

// TickerStream maintains a websocket subscription to the venue's ticker
// channel and caches the last trade price per product. It is a price
// cache for pre-trade deviation checks, not a market-data store.
type TickerStream struct {
	wsURL  string
	conn   *websocket.Conn
	mu     sync.RWMutex
	last   map[string]LastTrade
	subs   []string
	ctx    context.Context
	cancel context.CancelFunc

	isConnected bool
}

func NewTickerStream(wsURL string, products []string) *TickerStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &TickerStream{
		wsURL:  wsURL,
		last:   make(map[string]LastTrade),
		subs:   append([]string(nil), products...),
		ctx:    ctx,
		cancel: cancel,
	}
	return s
}

// Start launches the connection loop in a background goroutine.
func (s *TickerStream) Start() {
	go s.runLoop()
}

// Stop closes the stream.
func (s *TickerStream) Stop() {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

// Subscribe adds products to the subscription set.
func (s *TickerStream) Subscribe(productIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		found := false
		for _, existing := range s.subs {
			if existing == id {
				found = true
				break
			}
		}
		if !found {
			s.subs = append(s.subs, id)
			updates = append(updates, id)
		}
	}

	if len(updates) > 0 && s.isConnected {
		_ = s.sendSubscribe(updates)
	}
}

// Last returns the cached last trade for a product, if any.
func (s *TickerStream) Last(productID string) (LastTrade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lt, ok := s.last[productID]
	return lt, ok
}

func (s *TickerStream) runLoop() {
	delay := ReconnBaseDelay

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connect(); err != nil {
			logger.Error("Ticker stream connection failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		delay = ReconnBaseDelay
		s.mu.Lock()
		s.isConnected = true
		allSubs := append([]string(nil), s.subs...)
		s.mu.Unlock()

		if len(allSubs) > 0 {
			if err := s.sendSubscribe(allSubs); err != nil {
				logger.Error("Ticker stream subscribe failed", "error", err)
				s.conn.Close()
				continue
			}
		}

		s.readLoop()

		s.mu.Lock()
		s.isConnected = false
		s.mu.Unlock()
	}
}

func (s *TickerStream) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}
	s.conn = conn

	// Zombie check: without any data or pong inside the window, the
	// connection is assumed dead and re-dialed.
	readTimeout := PingPeriod + 10*time.Second
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go func() {
		ticker := time.NewTicker(PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.isConnected || s.conn == nil {
					s.mu.Unlock()
					return
				}
				err := s.conn.WriteMessage(websocket.PingMessage, []byte{})
				s.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	return nil
}

func (s *TickerStream) sendSubscribe(productIDs []string) error {
	msg := map[string]any{
		"type":        "subscribe",
		"product_ids": productIDs,
		"channels":    []string{"ticker"},
	}
	return s.conn.WriteJSON(msg)
}

type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

func (s *TickerStream) readLoop() {
	defer s.conn.Close()

	readTimeout := PingPeriod + 10*time.Second

	for {
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			logger.Warn("Ticker stream read failed", "error", err)
			return
		}
		s.handleMessage(message)
	}
}

func (s *TickerStream) handleMessage(raw []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "ticker" || msg.ProductID == "" {
		return
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.last[msg.ProductID] = LastTrade{
		ProductID: msg.ProductID,
		Price:     price,
		Seen:      time.Now(),
	}
	s.mu.Unlock()
}
