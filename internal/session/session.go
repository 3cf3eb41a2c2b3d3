package session

import (
	"time"

	"github.com/TradeGateHQ/tradegate/internal/identity"
)

// LoginSession is one in-flight or completed browser login, keyed by the
// unguessable state value round-tripped through the provider redirect.
type LoginSession struct {
	State     string         `json:"state"`
	Nonce     string         `json:"nonce"`
	AuthURL   string         `json:"auth_url"`
	CreatedAt time.Time      `json:"created_at"`
	Completed bool           `json:"completed"`
	Claims    map[string]any `json:"claims,omitempty"`
	Tokens    *identity.TokenSet `json:"tokens,omitempty"`

	// completing marks the session while a code exchange is in flight so
	// that two racing callbacks cannot both reach the provider.
	completing bool
}

// Age is the time elapsed since the session was created.
func (s *LoginSession) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// snapshot returns a caller-owned copy so store internals are never
// mutated through a returned session.
func (s *LoginSession) snapshot() *LoginSession {
	cp := *s
	cp.completing = false
	if s.Tokens != nil {
		tokens := *s.Tokens
		cp.Tokens = &tokens
	}
	if s.Claims != nil {
		claims := make(map[string]any, len(s.Claims))
		for k, v := range s.Claims {
			claims[k] = v
		}
		cp.Claims = claims
	}
	return &cp
}
