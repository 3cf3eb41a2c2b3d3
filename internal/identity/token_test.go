package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenSetExpiry(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens := TokenSet{
		AccessToken: "at",
		ExpiresIn:   3600,
		IssuedAt:    issued,
	}

	assert.Equal(t, issued.Add(time.Hour), tokens.ExpiresAt())
	assert.False(t, tokens.IsExpired(issued))
	assert.False(t, tokens.IsExpired(issued.Add(59*time.Minute)))
	assert.True(t, tokens.IsExpired(issued.Add(time.Hour)))
	assert.True(t, tokens.IsExpired(issued.Add(2*time.Hour)))
}

func TestTokenSetExpiringSoon(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens := TokenSet{ExpiresIn: 3600, IssuedAt: issued}

	assert.False(t, tokens.IsExpiringSoon(issued, DefaultExpiryLookahead))
	assert.False(t, tokens.IsExpiringSoon(issued.Add(54*time.Minute), DefaultExpiryLookahead))
	assert.True(t, tokens.IsExpiringSoon(issued.Add(56*time.Minute), DefaultExpiryLookahead))
	assert.True(t, tokens.IsExpiringSoon(issued.Add(2*time.Hour), DefaultExpiryLookahead))
}

func TestTokenSetExpiringSoonDefaultThreshold(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens := TokenSet{ExpiresIn: 600, IssuedAt: issued}

	// A zero threshold falls back to the default lookahead window.
	assert.True(t, tokens.IsExpiringSoon(issued.Add(6*time.Minute), 0))
	assert.False(t, tokens.IsExpiringSoon(issued, 0))
}
