package venue

import "fmt"

// APIError is a non-2xx response from the venue. Status and raw body are
// carried so the caller can log and decide whether to retry; the client
// itself never retries, since a retry must be re-signed with a fresh
// timestamp and keyed to the same client order id.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue api error %d: %s", e.Status, e.Body)
}
