package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload marks an event that cannot be ingested (unknown type, bad shape).
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidQuery marks a malformed report query (lookback, bucket, limit or window).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStoreUnavailable marks a failure of the underlying event store.
	ErrStoreUnavailable = errors.New("event store unavailable")
)

func invalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func invalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
