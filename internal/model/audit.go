package model

import (
	"time"
)

// AuditLog is one recorded gateway request. Bodies are stored after
// credential redaction; this is an operational trail, not a trade store.
type AuditLog struct {
	ID        string `json:"id"` // request ID (UUID)
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody string `json:"request_body"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context attached by handlers (order ids, login states, errors).
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
