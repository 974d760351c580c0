package analytics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matribhumi/api/analytics"
	"matribhumi/api/models"
	"matribhumi/api/store"
	"matribhumi/api/utils"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type failingStore struct {
	*store.MemoryEventStore
	err error
}

func (s *failingStore) Append(context.Context, models.Event) (string, error) {
	return "", s.err
}

func (s *failingStore) TopValues(context.Context, analytics.Window, analytics.Dimension, int) ([]models.ValueCount, error) {
	return nil, s.err
}

func TestIngest_StoresNormalizedEvent(t *testing.T) {
	s := store.NewMemoryEventStore()
	at := time.Date(2024, 3, 10, 10, 15, 30, 123456789, time.FixedZone("IST", 5*3600+1800))
	ing := analytics.NewIngestor(s).WithClock(fixedClock(at))

	id, err := ing.Ingest(context.Background(), models.TrackEventRequest{
		Type:      "package_view",
		Path:      "/packages/umrah-14",
		PackageID: "p1",
	}, "203.0.113.7", "Mozilla/5.0")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var stored []models.Event
	require.NoError(t, s.Scan(context.Background(), wideWindow(), func(e models.Event) error {
		stored = append(stored, e)
		return nil
	}))
	require.Len(t, stored, 1)

	e := stored[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, models.EventPackageView, e.Type)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.Equal(t, at.UTC().Truncate(time.Millisecond), e.OccurredAt)
	assert.Equal(t, "/packages/umrah-14", e.Path)
	assert.Equal(t, "p1", e.PackageID)
	assert.Empty(t, e.BookingID)
	assert.Equal(t, utils.FingerprintAddress("203.0.113.7"), e.OriginFingerprint)
	assert.NotContains(t, e.OriginFingerprint, "203.0.113.7")
	assert.Equal(t, "Mozilla/5.0", e.UserAgent)
}

func TestIngest_RejectsUnknownType(t *testing.T) {
	s := store.NewMemoryEventStore()
	ing := analytics.NewIngestor(s)

	for _, typ := range []string{"unknown_action", "", "PAGE_VIEW"} {
		_, err := ing.Ingest(context.Background(), models.TrackEventRequest{Type: typ}, "10.0.0.1", "")
		assert.ErrorIs(t, err, analytics.ErrInvalidPayload, "type %q", typ)
	}
	assert.Equal(t, 0, s.Len())
}

func TestIngest_RejectsOversizedFields(t *testing.T) {
	s := store.NewMemoryEventStore()
	ing := analytics.NewIngestor(s)

	_, err := ing.Ingest(context.Background(), models.TrackEventRequest{
		Type: "page_view",
		Path: "/" + strings.Repeat("a", 2048),
	}, "", "")
	assert.ErrorIs(t, err, analytics.ErrInvalidPayload)

	_, err = ing.Ingest(context.Background(), models.TrackEventRequest{
		Type:      "booking_submit",
		BookingID: strings.Repeat("b", 129),
	}, "", "")
	assert.ErrorIs(t, err, analytics.ErrInvalidPayload)

	assert.Equal(t, 0, s.Len())
}

func TestIngest_EmptyAddressHasNoFingerprint(t *testing.T) {
	s := store.NewMemoryEventStore()
	ing := analytics.NewIngestor(s)

	_, err := ing.Ingest(context.Background(), models.TrackEventRequest{Type: "whatsapp_open"}, "  ", "")
	require.NoError(t, err)

	require.NoError(t, s.Scan(context.Background(), wideWindow(), func(e models.Event) error {
		assert.Empty(t, e.OriginFingerprint)
		return nil
	}))
}

func TestIngest_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	ing := analytics.NewIngestor(&failingStore{MemoryEventStore: store.NewMemoryEventStore(), err: boom})

	_, err := ing.Ingest(context.Background(), models.TrackEventRequest{Type: "page_view"}, "10.0.0.1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, analytics.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, analytics.ErrInvalidPayload)
}

func wideWindow() analytics.Window {
	return analytics.Window{
		Since: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
