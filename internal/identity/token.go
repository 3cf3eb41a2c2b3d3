package identity

import "time"

// DefaultExpiryLookahead is the "expiring soon" window used when the
// caller does not supply one.
const DefaultExpiryLookahead = 300 * time.Second

// TokenSet is one issuance from the provider's token endpoint. It is owned
// by the login session that created it and is replaced wholesale on refresh,
// never mutated in place.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int       `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ExpiresAt is issued_at + validity duration.
func (t TokenSet) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpired reports whether the token has expired as of now.
func (t TokenSet) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// IsExpiringSoon reports whether less than threshold of validity remains.
func (t TokenSet) IsExpiringSoon(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultExpiryLookahead
	}
	return t.ExpiresAt().Sub(now) < threshold
}
