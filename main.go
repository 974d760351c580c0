package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"matribhumi/api/analytics"
	"matribhumi/api/config"
	"matribhumi/api/database"
	"matribhumi/api/handlers"
	"matribhumi/api/logger"
	"matribhumi/api/metrics"
	"matribhumi/api/middleware"
	"matribhumi/api/store"
	"matribhumi/api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server exiting")
}

func run(cfg *config.Config, log *logger.Logger) error {
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// PostgreSQL holds admin users, and events when EVENT_STORE=postgres.
	dbClient, err := database.NewPostgresDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
	}
	defer dbClient.Close()
	if err := dbClient.EnsureSchema(ctx); err != nil {
		return err
	}

	var eventStore analytics.EventStore
	switch cfg.EventStore {
	case config.EventStoreClickHouse:
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse, log)
		if err != nil {
			return fmt.Errorf("failed to initialize ClickHouse database: %w", err)
		}
		defer chClient.Close()
		if err := chClient.EnsureSchema(ctx); err != nil {
			return err
		}
		eventStore = store.NewClickHouseEventStore(chClient.Conn).WithAsyncInsert(cfg.ClickHouse.AsyncInsert)
	case config.EventStorePostgres:
		eventStore = store.NewPostgresEventStore(dbClient.DB)
	default:
		log.Warn("using in-memory event store; events are lost on restart")
		eventStore = store.NewMemoryEventStore()
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		limiter = store.NewRateLimitStore(redisClient, "ratelimit:")
	} else {
		log.Info("REDIS_URL not set, rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	userStore := store.NewUserStore(dbClient.DB)
	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	authHandlers := handlers.NewAuthHandlers(userStore, jwtManager, log, cfg.GinMode == gin.ReleaseMode)

	engine := analytics.NewEngine(eventStore)
	analyticsHandlers := handlers.NewAnalyticsHandlers(
		analytics.NewIngestor(eventStore),
		analytics.NewReporter(engine),
		m,
		log,
	)

	if cfg.BootstrapAdmin.Enabled() {
		admin := cfg.BootstrapAdmin
		if err := authHandlers.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	r, err := newRouter(routerDeps{
		log:            log,
		metrics:        m,
		metricsHandler: metrics.Handler(registry),
		tokens:         jwtManager,
		limiter:        limiter,
		limitWindow:    cfg.RateLimit.Window,
		eventsLimit:    cfg.RateLimit.Events,
		loginLimit:     cfg.RateLimit.Login,
		corsOrigins:    cfg.CORSOrigins,
		trustedProxies: cfg.TrustedProxies,
		auth:           authHandlers,
		analytics:      analyticsHandlers,
	})
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port), zap.String("event_store", cfg.EventStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
