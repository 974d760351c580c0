package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matribhumi/api/analytics"
	"matribhumi/api/models"
)

func TestMemoryEventStore_ConcurrentAppend(t *testing.T) {
	s := NewMemoryEventStore()
	at := testWindow.Since.Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(context.Background(), models.Event{Type: models.EventPageView, OccurredAt: at})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	rows, err := s.CountByType(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, []models.TypeCount{{Type: models.EventPageView, Count: 50}}, rows)
}

func TestMemoryEventStore_AppendHonorsContext(t *testing.T) {
	s := NewMemoryEventStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, models.Event{Type: models.EventPageView})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())
}

func TestMemoryEventStore_WindowIsHalfOpen(t *testing.T) {
	s := NewMemoryEventStore()
	for _, at := range []time.Time{testWindow.Since, testWindow.Until, testWindow.Since.Add(-time.Nanosecond)} {
		_, err := s.Append(context.Background(), models.Event{Type: models.EventBookingSubmit, OccurredAt: at, OriginFingerprint: "fp"})
		require.NoError(t, err)
	}

	var seen []time.Time
	require.NoError(t, s.Scan(context.Background(), testWindow, func(e models.Event) error {
		seen = append(seen, e.OccurredAt)
		return nil
	}))
	assert.Equal(t, []time.Time{testWindow.Since}, seen)

	n, err := s.DistinctFingerprints(context.Background(), testWindow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryEventStore_CountByBucket(t *testing.T) {
	s := NewMemoryEventStore()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, e := range []models.Event{
		{Type: models.EventPageView, OccurredAt: day.Add(10 * time.Minute)},
		{Type: models.EventPageView, OccurredAt: day.Add(50 * time.Minute)},
		{Type: models.EventPackageView, OccurredAt: day.Add(70 * time.Minute)},
	} {
		_, err := s.Append(context.Background(), e)
		require.NoError(t, err)
	}

	rows, err := s.CountByBucket(context.Background(), testWindow, analytics.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.BucketCount{
		{Bucket: day, Type: models.EventPageView, Count: 2},
		{Bucket: day.Add(time.Hour), Type: models.EventPackageView, Count: 1},
	}, rows)
}

func TestMemoryEventStore_TopValues(t *testing.T) {
	s := NewMemoryEventStore()
	at := testWindow.Since.Add(time.Hour)
	for _, e := range []models.Event{
		{Type: models.EventPageView, Path: "/b", OccurredAt: at.Add(2 * time.Minute)},
		{Type: models.EventPageView, Path: "/a", OccurredAt: at.Add(time.Minute)},
		{Type: models.EventPageView, Path: "/b", OccurredAt: at},
		{Type: models.EventPackageView, Path: "/c", OccurredAt: at},
	} {
		_, err := s.Append(context.Background(), e)
		require.NoError(t, err)
	}

	rows, err := s.TopValues(context.Background(), testWindow, analytics.DimensionPath, 10)
	require.NoError(t, err)
	assert.Equal(t, []models.ValueCount{
		{Value: "/b", Count: 2, FirstSeen: at},
		{Value: "/a", Count: 1, FirstSeen: at.Add(time.Minute)},
	}, rows)

	rows, err = s.TopValues(context.Background(), testWindow, analytics.DimensionPath, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
