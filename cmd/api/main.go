package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearbrook-health/patient-portal/internal/api/router"
	"github.com/clearbrook-health/patient-portal/internal/availability"
	"github.com/clearbrook-health/patient-portal/internal/clients"
	appconfig "github.com/clearbrook-health/patient-portal/internal/config"
	"github.com/clearbrook-health/patient-portal/internal/http/handlers"
	"github.com/clearbrook-health/patient-portal/internal/observability/metrics"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

func main() {
	// Best-effort .env load for local development
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	clientCache, err := clients.NewCache(clients.CacheConfig{
		Path:   cfg.ClientCachePath,
		Logger: logger.Named("client_cache"),
	})
	if err != nil {
		logger.Error("failed to open client cache", "error", err)
		os.Exit(1)
	}
	defer clientCache.Close()

	upstream, err := clients.NewUpstreamClient(clients.UpstreamConfig{
		BaseURL: cfg.UpstreamBaseURL,
		Token:   clients.StaticToken(cfg.UpstreamAPIKey),
		Timeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		logger.Error("failed to build upstream client", "error", err)
		os.Exit(1)
	}

	syncSvc, err := clients.NewSyncService(clients.SyncServiceConfig{
		Cache:       clientCache,
		Upstream:    upstream,
		Logger:      logger.Named("client_sync"),
		Metrics:     syncMetrics,
		PageSize:    cfg.SyncPageSize,
		PageDelay:   cfg.SyncPageDelay,
		StaleAfter:  cfg.SyncStaleAfter,
		RecentLimit: cfg.RecentSyncLimit,
	})
	if err != nil {
		logger.Error("failed to build sync service", "error", err)
		os.Exit(1)
	}

	slotCache := availability.NewCache(cfg.AvailabilityTTL, nil)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedules := consultantSchedules(cfg)
	if len(schedules) > 0 {
		source, err := availability.NewUpstreamSource(availability.UpstreamSourceConfig{
			Upstream:   upstream,
			Schedules:  schedules,
			WindowDays: cfg.AvailabilityWindowDays,
		})
		if err != nil {
			logger.Error("failed to build availability source", "error", err)
			os.Exit(1)
		}

		refresher, err := availability.NewRefresher(availability.RefresherConfig{
			Cache:    slotCache,
			Source:   source,
			Logger:   logger.Named("availability"),
			Metrics:  syncMetrics,
			Interval: cfg.AvailabilityRefreshInterval,
		})
		if err != nil {
			logger.Error("failed to build availability refresher", "error", err)
			os.Exit(1)
		}
		go refresher.Start(rootCtx)
	} else {
		logger.Warn("no consultant ids configured, availability cache disabled")
	}

	if cfg.SyncOnStartup {
		go func() {
			if _, err := syncSvc.SyncAll(rootCtx, nil); err != nil {
				logger.Warn("startup sync failed", "error", err)
			}
		}()
	}

	routerCfg := &router.Config{
		Logger:          logger,
		Booking:         handlers.NewBookingHandler(syncSvc, slotCache, logger.Named("bookings")),
		AdminSync:       handlers.NewAdminSyncHandler(syncSvc, clientCache, logger.Named("admin")),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// consultantSchedules expands the comma-separated CONSULTANT_IDS config
// into per-consultant working-day schedules.
func consultantSchedules(cfg *appconfig.Config) []availability.ConsultantSchedule {
	var schedules []availability.ConsultantSchedule
	for _, id := range strings.Split(cfg.ConsultantIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		schedules = append(schedules, availability.ConsultantSchedule{
			ConsultantID: id,
			DayStartHour: cfg.BookingDayStartHour,
			DayEndHour:   cfg.BookingDayEndHour,
			SlotMins:     cfg.SlotDurationMins,
		})
	}
	return schedules
}
