package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"matribhumi/api/models"
)

// Reporter assembles engine passes into one report over a single window.
type Reporter struct {
	engine *Engine
	now    func() time.Time
}

func NewReporter(engine *Engine) *Reporter {
	return &Reporter{engine: engine, now: time.Now}
}

// WithClock replaces the reporting clock; used by tests.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// window derives "now" once so every pass of a report shares the same bounds.
func (r *Reporter) window(q Query) Window {
	return q.Window(r.now().UTC().Truncate(time.Millisecond))
}

// BuildReport runs every aggregation pass against one window. Either all passes succeed
// or no report is returned.
func (r *Reporter) BuildReport(ctx context.Context, q Query) (*models.Report, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	w := r.window(q)

	var (
		summary     models.Counts
		uniques     uint64
		series      []models.SeriesBucket
		topPages    []models.TopPathResult
		topPackages []models.TopPackageResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary, err = r.engine.Summary(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		uniques, err = r.engine.UniqueVisitors(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		series, err = r.engine.Series(gctx, w, q.Bucket)
		return err
	})
	g.Go(func() (err error) {
		topPages, err = r.engine.TopPages(gctx, w, q.Limit)
		return err
	})
	g.Go(func() (err error) {
		topPackages, err = r.engine.TopPackages(gctx, w, q.Limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Report{
		Since:          w.Since,
		Until:          w.Until,
		Bucket:         string(q.Bucket),
		Summary:        summary,
		UniqueVisitors: uniques,
		Series:         series,
		TopPages:       topPages,
		TopPackages:    topPackages,
	}, nil
}

// BuildSummary returns only the per-type counts for the query's window.
func (r *Reporter) BuildSummary(ctx context.Context, q Query) (*models.SummaryReport, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	w := r.window(q)

	summary, err := r.engine.Summary(ctx, w)
	if err != nil {
		return nil, err
	}
	return &models.SummaryReport{Since: w.Since, Until: w.Until, Summary: summary}, nil
}
