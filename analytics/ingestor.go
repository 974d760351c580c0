package analytics

import (
	"context"
	"time"

	"matribhumi/api/models"
	"matribhumi/api/utils"
)

const (
	maxPathLength = 2048
	maxRefLength  = 128
)

// Ingestor validates client-reported actions and appends them to the event store.
type Ingestor struct {
	store EventStore
	now   func() time.Time
}

func NewIngestor(store EventStore) *Ingestor {
	return &Ingestor{store: store, now: time.Now}
}

// WithClock replaces the ingestion clock; used by tests.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// Ingest records one event. The origin address is reduced to a fingerprint and never stored.
func (i *Ingestor) Ingest(ctx context.Context, req models.TrackEventRequest, originAddress, userAgent string) (string, error) {
	event, err := i.normalize(req, originAddress, userAgent)
	if err != nil {
		return "", err
	}

	id, err := i.store.Append(ctx, event)
	if err != nil {
		return "", storeError("append event", err)
	}
	return id, nil
}

func (i *Ingestor) normalize(req models.TrackEventRequest, originAddress, userAgent string) (models.Event, error) {
	eventType := models.EventType(req.Type)
	if !eventType.Valid() {
		return models.Event{}, invalidPayload("unknown event type %q", req.Type)
	}
	if len(req.Path) > maxPathLength {
		return models.Event{}, invalidPayload("path exceeds %d bytes", maxPathLength)
	}
	if len(req.PackageID) > maxRefLength || len(req.BookingID) > maxRefLength {
		return models.Event{}, invalidPayload("reference exceeds %d bytes", maxRefLength)
	}

	return models.Event{
		Type:              eventType,
		OccurredAt:        i.now().UTC().Truncate(time.Millisecond),
		Path:              req.Path,
		PackageID:         req.PackageID,
		BookingID:         req.BookingID,
		OriginFingerprint: utils.FingerprintAddress(originAddress),
		UserAgent:         userAgent,
	}, nil
}
