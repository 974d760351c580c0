package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matribhumi/api/analytics"
	"matribhumi/api/models"
)

// PostgresEventStore keeps events in the events table of the primary database.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

var _ analytics.EventStore = (*PostgresEventStore)(nil)

func (s *PostgresEventStore) Append(ctx context.Context, event models.Event) (string, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO events (
			id, type, occurred_at, path, package_id, booking_id, origin_fingerprint, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, string(event.Type), event.OccurredAt,
		nullString(event.Path), nullString(event.PackageID), nullString(event.BookingID),
		nullString(event.OriginFingerprint), nullString(event.UserAgent),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return event.ID, nil
}

func (s *PostgresEventStore) Scan(ctx context.Context, w analytics.Window, fn func(models.Event) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, occurred_at, path, package_id, booking_id, origin_fingerprint, user_agent
		FROM events
		WHERE occurred_at >= $1 AND occurred_at < $2
	`, w.Since, w.Until)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event     models.Event
			eventType string
		)
		var path, pkg, booking, fingerprint, ua sql.NullString
		if err := rows.Scan(&event.ID, &eventType, &event.OccurredAt, &path, &pkg, &booking, &fingerprint, &ua); err != nil {
			return fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Type = models.EventType(eventType)
		event.OccurredAt = event.OccurredAt.UTC()
		event.Path = path.String
		event.PackageID = pkg.String
		event.BookingID = booking.String
		event.OriginFingerprint = fingerprint.String
		event.UserAgent = ua.String
		if err := fn(event); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresEventStore) CountByType(ctx context.Context, w analytics.Window) ([]models.TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) AS total_events
		FROM events
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY type
	`, w.Since, w.Until)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts by type: %w", err)
	}
	defer rows.Close()

	var results []models.TypeCount
	for rows.Next() {
		var (
			eventType string
			count     uint64
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count row: %w", err)
		}
		results = append(results, models.TypeCount{Type: models.EventType(eventType), Count: count})
	}
	return results, rows.Err()
}

func (s *PostgresEventStore) CountByBucket(ctx context.Context, w analytics.Window, g analytics.Granularity) ([]models.BucketCount, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid interval: %s", g)
	}

	// date_trunc with an explicit zone keeps bucket edges independent of the session TimeZone.
	query := fmt.Sprintf(`
		SELECT date_trunc('%s', occurred_at, 'UTC') AS time_bucket, type, COUNT(*) AS total_events
		FROM events
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY time_bucket, type
		ORDER BY time_bucket ASC, type ASC
	`, string(g))

	rows, err := s.db.QueryContext(ctx, query, w.Since, w.Until)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []models.BucketCount
	for rows.Next() {
		var (
			bucket    time.Time
			eventType string
			count     uint64
		)
		if err := rows.Scan(&bucket, &eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event counts over time row: %w", err)
		}
		results = append(results, models.BucketCount{Bucket: bucket.UTC(), Type: models.EventType(eventType), Count: count})
	}
	return results, rows.Err()
}

func (s *PostgresEventStore) DistinctFingerprints(ctx context.Context, w analytics.Window) (uint64, error) {
	var uniques uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT origin_fingerprint)
		FROM events
		WHERE occurred_at >= $1 AND occurred_at < $2 AND origin_fingerprint <> ''
	`, w.Since, w.Until).Scan(&uniques)
	if err != nil {
		return 0, fmt.Errorf("failed to query unique visitors: %w", err)
	}
	return uniques, nil
}

func (s *PostgresEventStore) TopValues(ctx context.Context, w analytics.Window, d analytics.Dimension, limit int) ([]models.ValueCount, error) {
	column, err := dimensionColumn(d)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = analytics.DefaultTopLimit
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS view_count, MIN(occurred_at) AS first_seen
		FROM events
		WHERE type = $1 AND occurred_at >= $2 AND occurred_at < $3 AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY view_count DESC, first_seen ASC, %[1]s ASC
		LIMIT $4
	`, column)

	rows, err := s.db.QueryContext(ctx, query, string(d.EventType()), w.Since, w.Until, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top %s values: %w", d, err)
	}
	defer rows.Close()

	var results []models.ValueCount
	for rows.Next() {
		var row models.ValueCount
		if err := rows.Scan(&row.Value, &row.Count, &row.FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan top %s row: %w", d, err)
		}
		row.FirstSeen = row.FirstSeen.UTC()
		results = append(results, row)
	}
	return results, rows.Err()
}

// nullString stores absent optional fields as NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
