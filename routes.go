package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"matribhumi/api/handlers"
	"matribhumi/api/logger"
	"matribhumi/api/metrics"
	"matribhumi/api/middleware"
	"matribhumi/api/models"
)

type routerDeps struct {
	log            *logger.Logger
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	tokens         middleware.TokenValidator
	limiter        middleware.Limiter
	limitWindow    time.Duration
	eventsLimit    int
	loginLimit     int
	corsOrigins    []string
	trustedProxies []string
	auth           *handlers.AuthHandlers
	analytics      *handlers.AnalyticsHandlers
}

var reportRoles = []models.Role{models.RoleAdmin, models.RoleEditor, models.RoleViewer}

func newRouter(d routerDeps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.trustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.log))
	r.Use(d.metrics.Middleware())
	r.Use(middleware.CORSMiddleware(d.corsOrigins))

	r.GET("/health", handlers.HealthCheck)
	if d.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.metricsHandler))
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login",
			middleware.RateLimit(d.limiter, "login", d.loginLimit, d.limitWindow, d.log, nil),
			d.auth.Login)
		authGroup.POST("/logout", d.auth.Logout)
	}

	events := r.Group("/events")
	{
		events.POST("",
			middleware.RateLimit(d.limiter, "events", d.eventsLimit, d.limitWindow, d.log, func(*gin.Context) {
				d.metrics.EventsRejected.WithLabelValues(metrics.ReasonRateLimited).Inc()
			}),
			d.analytics.TrackEvent)

		reports := events.Group("/admin")
		reports.Use(middleware.AuthRequired(d.tokens, d.log), middleware.RequireRole(reportRoles...))
		{
			reports.GET("/report", d.analytics.GetReport)
			reports.GET("/summary", d.analytics.GetSummary)
		}
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(d.tokens, d.log))
	{
		admin.GET("/me", d.auth.Me)
		admin.GET("/users", middleware.RequireRole(models.RoleAdmin), d.auth.ListUsers)
		admin.POST("/users", middleware.RequireRole(models.RoleAdmin), d.auth.CreateUser)
	}

	r.NoRoute(handlers.NotFound)
	return r, nil
}
