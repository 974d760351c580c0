package analytics

import (
	"context"
	"sort"

	"matribhumi/api/models"
)

// Engine computes exact aggregates over an event store. It holds no state between calls.
type Engine struct {
	store EventStore
}

func NewEngine(store EventStore) *Engine {
	return &Engine{store: store}
}

// Summary counts events per type. All four types are present, zero when absent.
func (e *Engine) Summary(ctx context.Context, w Window) (models.Counts, error) {
	if err := w.validate(); err != nil {
		return models.Counts{}, err
	}

	rows, err := e.store.CountByType(ctx, w)
	if err != nil {
		return models.Counts{}, storeError("count by type", err)
	}

	var counts models.Counts
	for _, row := range rows {
		counts.Add(row.Type, row.Count)
	}
	return counts, nil
}

// UniqueVisitors counts distinct origin fingerprints. Events without one carry no signal.
func (e *Engine) UniqueVisitors(ctx context.Context, w Window) (uint64, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}

	n, err := e.store.DistinctFingerprints(ctx, w)
	if err != nil {
		return 0, storeError("distinct fingerprints", err)
	}
	return n, nil
}

// Series buckets events by UTC calendar day or hour. Only buckets holding at least one
// event exist, and each of them carries all four type counts. Output is ascending.
func (e *Engine) Series(ctx context.Context, w Window, g Granularity) ([]models.SeriesBucket, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if !g.Valid() {
		return nil, invalidQuery("unknown bucket %q", g)
	}

	rows, err := e.store.CountByBucket(ctx, w, g)
	if err != nil {
		return nil, storeError("count by bucket", err)
	}

	series := make([]models.SeriesBucket, 0)
	index := make(map[int64]int)
	for _, row := range rows {
		if !row.Type.Valid() || row.Count == 0 {
			continue
		}
		start := g.Truncate(row.Bucket)
		key := start.Unix()
		pos, ok := index[key]
		if !ok {
			pos = len(series)
			index[key] = pos
			series = append(series, models.SeriesBucket{Bucket: start})
		}
		series[pos].Add(row.Type, row.Count)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Bucket.Before(series[j].Bucket)
	})
	return series, nil
}

// TopPages ranks page_view paths by count.
func (e *Engine) TopPages(ctx context.Context, w Window, limit int) ([]models.TopPathResult, error) {
	ranked, err := e.top(ctx, w, DimensionPath, limit)
	if err != nil {
		return nil, err
	}

	results := make([]models.TopPathResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, models.TopPathResult{Path: r.Value, Count: r.Count})
	}
	return results, nil
}

// TopPackages ranks package_view package ids by count.
func (e *Engine) TopPackages(ctx context.Context, w Window, limit int) ([]models.TopPackageResult, error) {
	ranked, err := e.top(ctx, w, DimensionPackage, limit)
	if err != nil {
		return nil, err
	}

	results := make([]models.TopPackageResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, models.TopPackageResult{PackageID: r.Value, Count: r.Count})
	}
	return results, nil
}

func (e *Engine) top(ctx context.Context, w Window, d Dimension, limit int) ([]models.ValueCount, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, invalidQuery("limit must not be negative")
	}
	limit = clampLimit(limit)

	rows, err := e.store.TopValues(ctx, w, d, limit)
	if err != nil {
		return nil, storeError("top "+string(d), err)
	}

	ranked := make([]models.ValueCount, 0, len(rows))
	for _, row := range rows {
		if row.Value == "" || row.Count == 0 {
			continue
		}
		ranked = append(ranked, row)
	}
	SortRanked(ranked)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// SortRanked orders by count descending, then first-seen ascending, then value ascending,
// so a fixed input always yields the same order.
func SortRanked(rows []models.ValueCount) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.FirstSeen.Equal(b.FirstSeen) {
			return a.FirstSeen.Before(b.FirstSeen)
		}
		return a.Value < b.Value
	})
}
