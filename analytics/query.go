package analytics

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"matribhumi/api/models"
)

const (
	DefaultLookback = 7 * 24 * time.Hour
	MaxLookback     = 90 * 24 * time.Hour
	DefaultTopLimit = 10
	MaxTopLimit     = 50
)

// Granularity is the calendar unit of a report's time series.
type Granularity string

const (
	Day  Granularity = "day"
	Hour Granularity = "hour"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return Day, nil
	case Day, Hour:
		return g, nil
	default:
		return "", invalidQuery("unknown bucket %q", raw)
	}
}

func (g Granularity) Valid() bool {
	return g == Day || g == Hour
}

// Truncate returns the start of the UTC calendar bucket containing t.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Window is the half-open interval [Since, Until) every aggregation pass reads.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

func (w Window) validate() error {
	if w.Since.IsZero() || w.Until.IsZero() {
		return invalidQuery("window bounds must be set")
	}
	if w.Until.Before(w.Since) {
		return invalidQuery("window ends before it starts")
	}
	return nil
}

// Dimension is a rankable attribute together with the event type it applies to.
type Dimension string

const (
	DimensionPath    Dimension = "path"
	DimensionPackage Dimension = "package"
)

// EventType returns the only event type a dimension is ranked over.
func (d Dimension) EventType() models.EventType {
	if d == DimensionPackage {
		return models.EventPackageView
	}
	return models.EventPageView
}

func (d Dimension) Valid() bool {
	return d == DimensionPath || d == DimensionPackage
}

// Query is a validated report request. A zero Lookback means the default unless the
// caller asked for it explicitly through ParseQuery.
type Query struct {
	Lookback time.Duration
	Bucket   Granularity
	Limit    int

	lookbackSet bool
}

// QueryParams carries the raw, unparsed report parameters of an HTTP request.
type QueryParams struct {
	SinceHours string
	Lookback   string
	Bucket     string
	Limit      string
}

// durationSyntax matches what time.ParseDuration accepts for a non-negative value.
var durationSyntax = regexp.MustCompile(`^\+?((\d+(\.\d*)?|\.\d+)(ns|us|µs|μs|ms|s|m|h))+$`)

// ParseQuery turns raw parameters into a Query. sinceHours takes precedence over lookback.
// Absent values fall back to defaults; oversize values are clamped.
func ParseQuery(p QueryParams) (Query, error) {
	var q Query

	lookback, set, err := parseLookback(p.SinceHours, p.Lookback)
	if err != nil {
		return Query{}, err
	}
	q.Lookback, q.lookbackSet = lookback, set

	if q.Bucket, err = ParseGranularity(p.Bucket); err != nil {
		return Query{}, err
	}

	if q.Limit, err = parseLimit(p.Limit); err != nil {
		return Query{}, err
	}

	return q.Normalize()
}

func parseLimit(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(trimmed)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && !strings.HasPrefix(trimmed, "-") {
			return MaxTopLimit, nil
		}
		return 0, invalidQuery("limit must be a positive integer, got %q", raw)
	}
	if limit < 1 {
		return 0, invalidQuery("limit must be a positive integer, got %q", raw)
	}
	return limit, nil
}

func parseLookback(sinceHours, lookback string) (time.Duration, bool, error) {
	if raw := strings.TrimSpace(sinceHours); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) {
			return 0, false, invalidQuery("sinceHours must be a number, got %q", sinceHours)
		}
		if hours < 0 {
			return 0, false, invalidQuery("sinceHours must not be negative")
		}
		if hours > MaxLookback.Hours() {
			return MaxLookback, true, nil
		}
		return time.Duration(hours * float64(time.Hour)), true, nil
	}

	if raw := strings.TrimSpace(lookback); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			// ParseDuration reports overflow with the same error as bad syntax.
			if durationSyntax.MatchString(raw) {
				return MaxLookback, true, nil
			}
			return 0, false, invalidQuery("lookback must be a duration, got %q", lookback)
		}
		if d < 0 {
			return 0, false, invalidQuery("lookback must not be negative")
		}
		return d, true, nil
	}

	return 0, false, nil
}

// Normalize applies defaults and clamps, and rejects negative or unknown values.
func (q Query) Normalize() (Query, error) {
	switch {
	case q.Lookback < 0:
		return Query{}, invalidQuery("lookback must not be negative")
	case q.Lookback == 0 && !q.lookbackSet:
		q.Lookback = DefaultLookback
	case q.Lookback > MaxLookback:
		q.Lookback = MaxLookback
	}

	if q.Bucket == "" {
		q.Bucket = Day
	}
	if !q.Bucket.Valid() {
		return Query{}, invalidQuery("unknown bucket %q", q.Bucket)
	}

	q.Limit = clampLimit(q.Limit)
	if q.Limit < 1 {
		return Query{}, invalidQuery("limit must be positive")
	}
	return q, nil
}

// Window anchors the query's lookback at now.
func (q Query) Window(now time.Time) Window {
	now = now.UTC()
	return Window{Since: now.Add(-q.Lookback), Until: now}
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultTopLimit
	case limit > MaxTopLimit:
		return MaxTopLimit
	default:
		return limit
	}
}
