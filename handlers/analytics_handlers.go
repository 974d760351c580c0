// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"matribhumi/api/analytics"
	"matribhumi/api/logger"
	"matribhumi/api/metrics"
	"matribhumi/api/models"
)

const (
	ingestTimeout = 5 * time.Second
	reportTimeout = 15 * time.Second
)

type AnalyticsHandlers struct {
	ingestor *analytics.Ingestor
	reporter *analytics.Reporter
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewAnalyticsHandlers(ingestor *analytics.Ingestor, reporter *analytics.Reporter, m *metrics.Metrics, log *logger.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		ingestor: ingestor,
		reporter: reporter,
		metrics:  m,
		log:      log,
	}
}

// TrackEvent records one client-reported action. The body is never echoed back.
func (h *AnalyticsHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.EventsRejected.WithLabelValues(metrics.ReasonInvalidPayload).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	_, err := h.ingestor.Ingest(ctx, req, c.ClientIP(), c.Request.UserAgent())
	switch {
	case err == nil:
		h.metrics.EventsIngested.WithLabelValues(req.Type).Inc()
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	case errors.Is(err, analytics.ErrInvalidPayload):
		h.metrics.EventsRejected.WithLabelValues(metrics.ReasonInvalidPayload).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
	default:
		h.metrics.EventsRejected.WithLabelValues(metrics.ReasonStoreError).Inc()
		h.log.Error("failed to record event", zap.Error(err), zap.String("type", req.Type))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
	}
}

// GetReport answers GET /events/admin/report.
func (h *AnalyticsHandlers) GetReport(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), reportTimeout)
	defer cancel()

	started := time.Now()
	report, err := h.reporter.BuildReport(ctx, q)
	h.metrics.ObserveReport("report", started)
	if err != nil {
		h.writeQueryError(c, "report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetSummary answers GET /events/admin/summary.
func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), reportTimeout)
	defer cancel()

	started := time.Now()
	summary, err := h.reporter.BuildSummary(ctx, q)
	h.metrics.ObserveReport("summary", started)
	if err != nil {
		h.writeQueryError(c, "summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AnalyticsHandlers) parseQuery(c *gin.Context) (analytics.Query, bool) {
	q, err := analytics.ParseQuery(analytics.QueryParams{
		SinceHours: c.Query("sinceHours"),
		Lookback:   c.Query("lookback"),
		Bucket:     c.Query("bucket"),
		Limit:      c.Query("limit"),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return analytics.Query{}, false
	}
	return q, true
}

func (h *AnalyticsHandlers) writeQueryError(c *gin.Context, kind string, err error) {
	if errors.Is(err, analytics.ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}
	h.log.Error("failed to build analytics "+kind, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build " + kind})
}
