// api/models/event.go
package models

import (
	"time"
)

// EventType is the closed set of client-reported actions.
type EventType string

const (
	EventPageView      EventType = "page_view"
	EventPackageView   EventType = "package_view"
	EventBookingSubmit EventType = "booking_submit"
	EventWhatsAppOpen  EventType = "whatsapp_open"
)

// EventTypes lists every event type in reporting order.
var EventTypes = []EventType{
	EventPageView,
	EventPackageView,
	EventBookingSubmit,
	EventWhatsAppOpen,
}

// Valid reports whether t is one of the four known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventPackageView, EventBookingSubmit, EventWhatsAppOpen:
		return true
	default:
		return false
	}
}

// Event is one stored usage fact. Empty optional fields mean "not applicable".
type Event struct {
	ID                string    `json:"id"`
	Type              EventType `json:"type"`
	OccurredAt        time.Time `json:"occurredAt"`
	Path              string    `json:"path,omitempty"`
	PackageID         string    `json:"packageId,omitempty"`
	BookingID         string    `json:"bookingId,omitempty"`
	OriginFingerprint string    `json:"originFingerprint,omitempty"`
	UserAgent         string    `json:"userAgent,omitempty"`
}

// TrackEventRequest is the public payload of POST /events.
type TrackEventRequest struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	PackageID string `json:"packageId,omitempty"`
	BookingID string `json:"bookingId,omitempty"`
}

// Counts holds one counter per event type. The zero value already carries all four keys.
type Counts struct {
	PageView      uint64 `json:"page_view"`
	PackageView   uint64 `json:"package_view"`
	BookingSubmit uint64 `json:"booking_submit"`
	WhatsAppOpen  uint64 `json:"whatsapp_open"`
}

// Add increments the counter for t by n. Unknown types are ignored and reported false.
func (c *Counts) Add(t EventType, n uint64) bool {
	switch t {
	case EventPageView:
		c.PageView += n
	case EventPackageView:
		c.PackageView += n
	case EventBookingSubmit:
		c.BookingSubmit += n
	case EventWhatsAppOpen:
		c.WhatsAppOpen += n
	default:
		return false
	}
	return true
}

// Get returns the counter for t.
func (c Counts) Get(t EventType) uint64 {
	switch t {
	case EventPageView:
		return c.PageView
	case EventPackageView:
		return c.PackageView
	case EventBookingSubmit:
		return c.BookingSubmit
	case EventWhatsAppOpen:
		return c.WhatsAppOpen
	default:
		return 0
	}
}

// Total sums all four counters.
func (c Counts) Total() uint64 {
	return c.PageView + c.PackageView + c.BookingSubmit + c.WhatsAppOpen
}

// TypeCount is one row of a grouped count by event type.
type TypeCount struct {
	Type  EventType
	Count uint64
}

// BucketCount is one row of a grouped count by (time bucket, event type).
type BucketCount struct {
	Bucket time.Time
	Type   EventType
	Count  uint64
}

// ValueCount is one row of a top-N ranking over a single dimension.
type ValueCount struct {
	Value     string
	Count     uint64
	FirstSeen time.Time
}

// SeriesBucket is one point of a report's time series.
type SeriesBucket struct {
	Bucket time.Time `json:"bucket"`
	Counts
}

type TopPathResult struct {
	Path  string `json:"path"`
	Count uint64 `json:"count"`
}

type TopPackageResult struct {
	PackageID string `json:"packageId"`
	Count     uint64 `json:"count"`
}

// Report is the assembled analytics response for one window.
type Report struct {
	Since          time.Time          `json:"since"`
	Until          time.Time          `json:"until"`
	Bucket         string             `json:"bucket"`
	Summary        Counts             `json:"summary"`
	UniqueVisitors uint64             `json:"uniqueVisitors"`
	Series         []SeriesBucket     `json:"series"`
	TopPages       []TopPathResult    `json:"topPages"`
	TopPackages    []TopPackageResult `json:"topPackages"`
}

// SummaryReport is the lighter variant of Report.
type SummaryReport struct {
	Since   time.Time `json:"since"`
	Until   time.Time `json:"until"`
	Summary Counts    `json:"summary"`
}
