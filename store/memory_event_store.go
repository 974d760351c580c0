package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"matribhumi/api/analytics"
	"matribhumi/api/models"
)

// MemoryEventStore keeps events in process. It backs EVENT_STORE=memory and the tests.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

var _ analytics.EventStore = (*MemoryEventStore)(nil)

func (s *MemoryEventStore) Append(ctx context.Context, event models.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return event.ID, nil
}

// Len returns the number of stored events.
func (s *MemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Scan walks a snapshot of the slice, so fn may append without deadlocking.
func (s *MemoryEventStore) Scan(ctx context.Context, w analytics.Window, fn func(models.Event) error) error {
	s.mu.RLock()
	snapshot := s.events[:len(s.events):len(s.events)]
	s.mu.RUnlock()

	for _, event := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !w.Contains(event.OccurredAt) {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryEventStore) CountByType(ctx context.Context, w analytics.Window) ([]models.TypeCount, error) {
	counts := make(map[models.EventType]uint64)
	err := s.Scan(ctx, w, func(e models.Event) error {
		counts[e.Type]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.TypeCount, 0, len(counts))
	for t, n := range counts {
		rows = append(rows, models.TypeCount{Type: t, Count: n})
	}
	return rows, nil
}

func (s *MemoryEventStore) CountByBucket(ctx context.Context, w analytics.Window, g analytics.Granularity) ([]models.BucketCount, error) {
	type key struct {
		bucket int64
		typ    models.EventType
	}
	counts := make(map[key]*models.BucketCount)
	err := s.Scan(ctx, w, func(e models.Event) error {
		start := g.Truncate(e.OccurredAt)
		k := key{bucket: start.Unix(), typ: e.Type}
		row, ok := counts[k]
		if !ok {
			row = &models.BucketCount{Bucket: start, Type: e.Type}
			counts[k] = row
		}
		row.Count++
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.BucketCount, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	return rows, nil
}

func (s *MemoryEventStore) DistinctFingerprints(ctx context.Context, w analytics.Window) (uint64, error) {
	seen := make(map[string]struct{})
	err := s.Scan(ctx, w, func(e models.Event) error {
		if e.OriginFingerprint != "" {
			seen[e.OriginFingerprint] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(len(seen)), nil
}

func (s *MemoryEventStore) TopValues(ctx context.Context, w analytics.Window, d analytics.Dimension, limit int) ([]models.ValueCount, error) {
	eventType := d.EventType()
	counts := make(map[string]*models.ValueCount)
	err := s.Scan(ctx, w, func(e models.Event) error {
		if e.Type != eventType {
			return nil
		}
		value := dimensionValue(e, d)
		if value == "" {
			return nil
		}
		row, ok := counts[value]
		if !ok {
			row = &models.ValueCount{Value: value, FirstSeen: e.OccurredAt}
			counts[value] = row
		}
		row.Count++
		if e.OccurredAt.Before(row.FirstSeen) {
			row.FirstSeen = e.OccurredAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.ValueCount, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	analytics.SortRanked(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func dimensionValue(e models.Event, d analytics.Dimension) string {
	switch d {
	case analytics.DimensionPath:
		return e.Path
	case analytics.DimensionPackage:
		return e.PackageID
	default:
		return ""
	}
}
