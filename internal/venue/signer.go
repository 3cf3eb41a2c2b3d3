package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"

	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
)

// Authentication header names expected by the venue.
const (
	HeaderTimestamp  = "CB-ACCESS-TIMESTAMP"
	HeaderAPIKey     = "CB-ACCESS-KEY"
	HeaderPassphrase = "CB-ACCESS-PASSPHRASE"
)

// Signer computes per-request authentication signatures. The signature is
// a pure function of (timestamp, method, path, body, secret); the venue
// rejects requests whose timestamp falls outside its staleness window, so
// every request is signed with a fresh timestamp and none is ever reused.
type Signer struct {
	creds *CredentialSet
	clk   clock.Clock
}

func NewSigner(creds *CredentialSet, clk clock.Clock) *Signer {
	if clk == nil {
		clk = clock.System()
	}
	return &Signer{creds: creds, clk: clk}
}

// Sign computes HMAC-SHA256 over timestamp+method+path+body with the
// active secret and encodes the digest for header transport.
func (s *Signer) Sign(timestamp, method, path, body string) string {
	_, secret, _ := s.creds.Active()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers captures the current time once and builds the full
// authentication header set from that same timestamp, so the signature
// always describes the exact request sent.
func (s *Signer) Headers(method, path, body string) map[string]string {
	timestamp := strconv.FormatInt(s.clk.Now().Unix(), 10)
	signature := s.Sign(timestamp, method, path, body)
	key, _, passphrase := s.creds.Active()

	return map[string]string{
		"Authorization":  "Bearer " + signature,
		HeaderTimestamp:  timestamp,
		HeaderAPIKey:     key,
		HeaderPassphrase: passphrase,
		"Content-Type":   "application/json",
	}
}
