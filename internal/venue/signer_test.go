package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(t *testing.T) *CredentialSet {
	t.Helper()
	creds, err := NewCredentialSet(config.VenueConfig{
		Production: config.VenueCreds{
			APIKey:        "key-1",
			APISecret:     "secret-1",
			APIPassphrase: "pass-1",
		},
	})
	require.NoError(t, err)
	return creds
}

func TestSignIsDeterministic(t *testing.T) {
	s := NewSigner(testCreds(t), nil)

	a := s.Sign("1717243200", "POST", "/api/v1/brokerage/orders", `{"side":"BUY"}`)
	b := s.Sign("1717243200", "POST", "/api/v1/brokerage/orders", `{"side":"BUY"}`)
	assert.Equal(t, a, b)

	// Any changed input must change the signature.
	assert.NotEqual(t, a, s.Sign("1717243201", "POST", "/api/v1/brokerage/orders", `{"side":"BUY"}`))
	assert.NotEqual(t, a, s.Sign("1717243200", "GET", "/api/v1/brokerage/orders", `{"side":"BUY"}`))
	assert.NotEqual(t, a, s.Sign("1717243200", "POST", "/api/v1/accounts", `{"side":"BUY"}`))
	assert.NotEqual(t, a, s.Sign("1717243200", "POST", "/api/v1/brokerage/orders", `{"side":"SELL"}`))
}

func TestSignMatchesReference(t *testing.T) {
	s := NewSigner(testCreds(t), nil)

	got := s.Sign("1717243200", "GET", "/api/v1/accounts", "")

	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write([]byte("1717243200" + "GET" + "/api/v1/accounts"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, got)
}

func TestHeadersUseSingleTimestamp(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewSigner(testCreds(t), clk)

	headers := s.Headers("GET", "/api/v1/accounts", "")

	ts := headers[HeaderTimestamp]
	assert.Equal(t, "1748779200", ts)
	assert.Equal(t, "key-1", headers[HeaderAPIKey])
	assert.Equal(t, "pass-1", headers[HeaderPassphrase])
	assert.Equal(t, "application/json", headers["Content-Type"])

	// The Authorization signature is computed from the same timestamp
	// that travels in the header.
	assert.Equal(t, "Bearer "+s.Sign(ts, "GET", "/api/v1/accounts", ""), headers["Authorization"])
}
