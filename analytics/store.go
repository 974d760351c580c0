package analytics

import (
	"context"

	"matribhumi/api/models"
)

// EventStore is the persistence contract of the analytics core. Every read takes the
// half-open window [Since, Until). Implementations may group server-side or in process,
// but all counts must be exact.
type EventStore interface {
	// Append persists one event and returns its id, assigning one when the event has none.
	Append(ctx context.Context, event models.Event) (string, error)
	// Scan streams every event in the window to fn, in no particular order.
	Scan(ctx context.Context, w Window, fn func(models.Event) error) error
	// CountByType groups events in the window by type.
	CountByType(ctx context.Context, w Window) ([]models.TypeCount, error)
	// CountByBucket groups events in the window by UTC calendar bucket and type.
	CountByBucket(ctx context.Context, w Window, g Granularity) ([]models.BucketCount, error)
	// DistinctFingerprints counts distinct non-empty origin fingerprints in the window.
	DistinctFingerprints(ctx context.Context, w Window) (uint64, error)
	// TopValues ranks non-empty values of d among events of d.EventType(), most frequent first.
	TopValues(ctx context.Context, w Window, d Dimension, limit int) ([]models.ValueCount, error)
}
