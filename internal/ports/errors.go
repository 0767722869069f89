package ports

import (
	"errors"
	"fmt"
)

// QuotaError signals that the provider refused the request because the
// account's quota or credentials are exhausted or invalid. It is never
// retried: switching credentials is a caller concern, so the error must
// surface immediately with the provider's own message attached.
type QuotaError struct {
	Code int
	Body string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("provider quota exceeded (status %d): %s", e.Code, e.Body)
}

// ProviderUnavailableError signals that a bounded retry loop exhausted its
// attempts against transient failures.
type ProviderUnavailableError struct {
	Attempts int
	Last     error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Last }

// IsQuotaExceeded reports whether err carries a QuotaError anywhere in its chain.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
