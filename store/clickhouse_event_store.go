// api/store/clickhouse_event_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"matribhumi/api/analytics"
	"matribhumi/api/models"
)

// ClickHouseEventStore keeps events in the analytics_events MergeTree table and lets
// ClickHouse do the grouping.
type ClickHouseEventStore struct {
	conn        driver.Conn
	asyncInsert bool
}

func NewClickHouseEventStore(conn driver.Conn) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn}
}

// WithAsyncInsert makes Append hand single rows to the server-side insert buffer instead
// of sending a one-row native batch, which would create one part per event.
func (s *ClickHouseEventStore) WithAsyncInsert(enabled bool) *ClickHouseEventStore {
	s.asyncInsert = enabled
	return s
}

var _ analytics.EventStore = (*ClickHouseEventStore)(nil)

const insertEventColumns = `
		INSERT INTO analytics_events (
			event_id, event_type, occurred_at, path, package_id, booking_id,
			origin_fingerprint, user_agent
		)`

// Append returns only once the server has flushed the row, so failures still surface.
var asyncInsertSettings = clickhouse.Settings{
	"async_insert":          1,
	"wait_for_async_insert": 1,
}

func (s *ClickHouseEventStore) Append(ctx context.Context, event models.Event) (string, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if !s.asyncInsert {
		if err := s.AppendBatch(ctx, []models.Event{event}); err != nil {
			return "", err
		}
		return event.ID, nil
	}

	ctx = clickhouse.Context(ctx, clickhouse.WithSettings(asyncInsertSettings))
	err := s.conn.Exec(ctx, insertEventColumns+`
		VALUES (@event_id, @event_type, @occurred_at, @path, @package_id, @booking_id,
			@origin_fingerprint, @user_agent)
	`,
		clickhouse.Named("event_id", event.ID),
		clickhouse.Named("event_type", string(event.Type)),
		clickhouse.DateNamed("occurred_at", event.OccurredAt, clickhouse.MilliSeconds),
		clickhouse.Named("path", event.Path),
		clickhouse.Named("package_id", event.PackageID),
		clickhouse.Named("booking_id", event.BookingID),
		clickhouse.Named("origin_fingerprint", event.OriginFingerprint),
		clickhouse.Named("user_agent", event.UserAgent),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return event.ID, nil
}

// AppendBatch inserts events in one native batch. Column order must match the table.
func (s *ClickHouseEventStore) AppendBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, insertEventColumns)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		err := batch.Append(
			event.ID,
			string(event.Type),
			event.OccurredAt,
			event.Path,
			event.PackageID,
			event.BookingID,
			event.OriginFingerprint,
			event.UserAgent,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s to batch: %w", event.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStore) Scan(ctx context.Context, w analytics.Window, fn func(models.Event) error) error {
	rows, err := s.conn.Query(ctx, `
		SELECT event_id, event_type, occurred_at, path, package_id, booking_id,
			origin_fingerprint, user_agent
		FROM analytics_events
		WHERE occurred_at >= @since AND occurred_at < @until
	`, windowArgs(w)...)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event     models.Event
			eventType string
		)
		if err := rows.Scan(
			&event.ID, &eventType, &event.OccurredAt, &event.Path, &event.PackageID,
			&event.BookingID, &event.OriginFingerprint, &event.UserAgent,
		); err != nil {
			return fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Type = models.EventType(eventType)
		event.OccurredAt = event.OccurredAt.UTC()
		if err := fn(event); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row error during event scan: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStore) CountByType(ctx context.Context, w analytics.Window) ([]models.TypeCount, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_type, count() AS total_events
		FROM analytics_events
		WHERE occurred_at >= @since AND occurred_at < @until
		GROUP BY event_type
	`, windowArgs(w)...)
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts query: %w", err)
	}
	return results, nil
}

func (s *ClickHouseEventStore) CountByBucket(ctx context.Context, w analytics.Window, g analytics.Granularity) ([]models.BucketCount, error) {
	fn, err := clickHouseBucketFunc(g)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s(occurred_at, 'UTC') AS time_bucket, event_type, count() AS total_events
		FROM analytics_events
		WHERE occurred_at >= @since AND occurred_at < @until
		GROUP BY time_bucket, event_type
		ORDER BY time_bucket ASC, event_type ASC
	`, fn)

	rows, err := s.conn.Query(ctx, query, windowArgs(w)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []models.BucketCount
	for rows.Next() {
		var (
			timeBucket time.Time
			eventType  string
			count      uint64
		)
		if err := rows.Scan(&timeBucket, &eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event counts over time row: %w", err)
		}
		results = append(results, models.BucketCount{
			Bucket: timeBucket.UTC(),
			Type:   models.EventType(eventType),
			Count:  count,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts over time query: %w", err)
	}
	return results, nil
}

func (s *ClickHouseEventStore) DistinctFingerprints(ctx context.Context, w analytics.Window) (uint64, error) {
	var uniques uint64
	err := s.conn.QueryRow(ctx, `
		SELECT uniqExact(origin_fingerprint)
		FROM analytics_events
		WHERE occurred_at >= @since AND occurred_at < @until AND origin_fingerprint != ''
	`, windowArgs(w)...).Scan(&uniques)
	if err != nil {
		return 0, fmt.Errorf("failed to query unique visitors: %w", err)
	}
	return uniques, nil
}

func (s *ClickHouseEventStore) TopValues(ctx context.Context, w analytics.Window, d analytics.Dimension, limit int) ([]models.ValueCount, error) {
	column, err := dimensionColumn(d)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = analytics.DefaultTopLimit
	}

	query := fmt.Sprintf(`
		SELECT %[1]s AS value, count() AS view_count, min(occurred_at) AS first_seen
		FROM analytics_events
		WHERE event_type = @event_type AND occurred_at >= @since AND occurred_at < @until AND %[1]s != ''
		GROUP BY value
		ORDER BY view_count DESC, first_seen ASC, value ASC
		LIMIT @limit
	`, column)

	rows, err := s.conn.Query(ctx, query, append(windowArgs(w),
		clickhouse.Named("event_type", string(d.EventType())),
		clickhouse.Named("limit", uint64(limit)),
	)...)
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top %s: %w", d, err)
	}
	return results, nil
}

// windowArgs binds the window bounds at millisecond precision; positional binds would
// truncate them to whole seconds.
func windowArgs(w analytics.Window) []any {
	return []any{
		clickhouse.DateNamed("since", w.Since, clickhouse.MilliSeconds),
		clickhouse.DateNamed("until", w.Until, clickhouse.MilliSeconds),
	}
}

func clickHouseBucketFunc(g analytics.Granularity) (string, error) {
	switch g {
	case analytics.Hour:
		return "toStartOfHour", nil
	case analytics.Day:
		return "toStartOfDay", nil
	default:
		return "", fmt.Errorf("invalid interval: %s", g)
	}
}

// dimensionColumn maps a dimension to a fixed column name; nothing user-supplied reaches SQL.
func dimensionColumn(d analytics.Dimension) (string, error) {
	switch d {
	case analytics.DimensionPath:
		return "path", nil
	case analytics.DimensionPackage:
		return "package_id", nil
	default:
		return "", fmt.Errorf("invalid dimension: %s", d)
	}
}
