package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/identity"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/TradeGateHQ/tradegate/internal/pkg/logger"
	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
)

// DefaultMaxAge is how long a session may live before the sweep removes
// it, regardless of completion state.
const DefaultMaxAge = 24 * time.Hour

var (
	// ErrUnknownSession means the presented state is not registered. The
	// callback is treated as forged or expired; nothing about existing
	// sessions is revealed.
	ErrUnknownSession = errors.New("login session not found")

	// ErrCompletionInProgress means another caller is mid-exchange for the
	// same session. The codes are single-use, so the loser must not reach
	// the provider a second time.
	ErrCompletionInProgress = errors.New("login completion already in progress")
)

// CompletionError wraps a downstream failure during completion. The
// session stays pending, so a fresh attempt is possible if the cause was
// transient.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("login completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Exchanger is the slice of the identity client the store needs.
type Exchanger interface {
	BuildAuthorizationURL(scopes []string, state, nonce string) (authURL, outState, outNonce string, err error)
	ExchangeCode(ctx context.Context, code string) (*identity.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenSet, error)
	DecodeIDToken(idToken string) (map[string]any, error)
	FetchProfile(ctx context.Context, accessToken string) (map[string]any, error)
}

// Store owns every in-flight and completed login session, keyed by state.
// A single mutex guards the map; remote calls during completion happen
// outside the lock so unrelated logins are never blocked on the network.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*LoginSession
	client   Exchanger
	clk      clock.Clock
}

func NewStore(client Exchanger, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System()
	}
	return &Store{
		sessions: make(map[string]*LoginSession),
		client:   client,
		clk:      clk,
	}
}

// Begin creates and registers a pending session, returning the
// authorization URL and state to hand back to the caller's redirect.
func (s *Store) Begin(ctx context.Context) (*LoginSession, error) {
	authURL, state, nonce, err := s.client.BuildAuthorizationURL(nil, "", "")
	if err != nil {
		return nil, err
	}

	sess := &LoginSession{
		State:     state,
		Nonce:     nonce,
		AuthURL:   authURL,
		CreatedAt: s.clk.Now(),
	}

	s.mu.Lock()
	s.sessions[state] = sess
	snap := sess.snapshot()
	s.updateGauges()
	s.mu.Unlock()

	return snap, nil
}

// Complete redeems the authorization code for the session identified by
// state. It is at-most-once: a second call on a completed session returns
// the stored result without another provider round trip, and a racing
// call during the exchange fails with ErrCompletionInProgress.
func (s *Store) Complete(ctx context.Context, state, code string) (*LoginSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[state]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownSession
	}
	if sess.Completed {
		snap := sess.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	if sess.completing {
		s.mu.Unlock()
		return nil, ErrCompletionInProgress
	}
	sess.completing = true
	s.mu.Unlock()

	tokens, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		s.abortCompletion(state)
		return nil, &CompletionError{Err: err}
	}

	// Identity-token claims are unauthenticated hints; the fetched profile
	// overlays them since it came back over an authenticated call.
	claims := map[string]any{}
	if tokens.IDToken != "" {
		if decoded, err := s.client.DecodeIDToken(tokens.IDToken); err == nil {
			claims = decoded
		}
	}
	profile, err := s.client.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		s.abortCompletion(state)
		return nil, &CompletionError{Err: err}
	}
	for k, v := range profile {
		claims[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok = s.sessions[state]
	if !ok {
		// Swept while the exchange was in flight.
		return nil, ErrUnknownSession
	}
	sess.completing = false
	sess.Completed = true
	sess.Tokens = tokens
	sess.Claims = claims
	s.updateGauges()
	return sess.snapshot(), nil
}

// ErrSessionPending means a resource call arrived before the code
// exchange finished; there are no tokens to use or refresh yet.
var ErrSessionPending = errors.New("login session not yet completed")

// EnsureFresh returns the session's snapshot with a usable access token,
// refreshing first when the current one is expired or inside the
// lookahead window. Concurrent refreshes for the same session are
// harmless; the venue accepts either token and the last write wins.
func (s *Store) EnsureFresh(ctx context.Context, state string, lookahead time.Duration) (*LoginSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[state]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownSession
	}
	if !sess.Completed || sess.Tokens == nil {
		s.mu.Unlock()
		return nil, ErrSessionPending
	}
	if !sess.Tokens.IsExpiringSoon(s.clk.Now(), lookahead) {
		snap := sess.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	refreshToken := sess.Tokens.RefreshToken
	s.mu.Unlock()

	tokens, err := s.client.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok = s.sessions[state]
	if !ok {
		return nil, ErrUnknownSession
	}
	sess.Tokens = tokens
	return sess.snapshot(), nil
}

// Lookup returns the session registered under state, or nil.
func (s *Store) Lookup(state string) *LoginSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[state]
	if !ok {
		return nil
	}
	return sess.snapshot()
}

// Sweep removes sessions older than maxAge, pending or completed, and
// returns how many were removed. It is the only removal path and is safe
// to run concurrently with Begin/Complete.
func (s *Store) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := s.clk.Now().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for state, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, state)
			removed++
		}
	}
	s.updateGauges()
	s.mu.Unlock()

	if removed > 0 {
		metrics.SessionsSwept.Add(float64(removed))
		logger.Info("swept login sessions", "removed", removed, "max_age", maxAge.String())
	}
	return removed
}

// Len reports the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) abortCompletion(state string) {
	s.mu.Lock()
	if sess, ok := s.sessions[state]; ok {
		sess.completing = false
	}
	s.mu.Unlock()
}

// updateGauges is called with the lock held.
func (s *Store) updateGauges() {
	pending, completed := 0, 0
	for _, sess := range s.sessions {
		if sess.Completed {
			completed++
		} else {
			pending++
		}
	}
	metrics.LoginSessions.WithLabelValues("pending").Set(float64(pending))
	metrics.LoginSessions.WithLabelValues("completed").Set(float64(completed))
}
