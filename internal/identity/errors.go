package identity

import "fmt"

// AuthError means the provider rejected a code or refresh token (expired,
// already used, mismatched redirect target, revoked). It is never retryable
// with the same inputs; the caller must force a fresh login.
type AuthError struct {
	Operation string
	Status    int
	Body      string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("identity %s rejected (status %d): %s", e.Operation, e.Status, e.Body)
}

// APIError is a non-2xx from the provider's resource API. The raw body is
// carried so the caller can log and decide whether to retry.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity api error %d: %s", e.Status, e.Body)
}
