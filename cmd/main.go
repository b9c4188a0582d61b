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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courierbot/config"
	"courierbot/pkg/bot"
	"courierbot/pkg/jobs"
	"courierbot/pkg/logger"
	"courierbot/pkg/maps"
	"courierbot/pkg/metrics"
	"courierbot/service"
	"courierbot/storage/postgres"
	"courierbot/storage/redis"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx := context.Background()

	// 3. Postgres (orders, sales, routes) and Redis (sessions)
	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pgStore.Close()

	rdb, err := redis.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer rdb.Close()
	sessions := redis.NewSessionRepo(rdb, cfg.SessionRetention, log)

	// 4. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, cfg.ServiceName)

	// 5. Google Maps clients and services
	mapsClients, err := maps.New(cfg, log, m)
	if err != nil {
		log.Error("Failed to initialize google maps", logger.Error(err))
		os.Exit(1)
	}
	svc := service.New(cfg, pgStore, sessions, mapsClients.Geocoder, mapsClients.Distances, log, m)

	// 6. Scheduled jobs
	jm := jobs.NewJobManager(mapsClients.Quota, cfg.QuotaResetSpec, cfg.Location(), m, log)
	if err := jm.StartAll(); err != nil {
		log.Error("Failed to start jobs", logger.Error(err))
		os.Exit(1)
	}
	defer jm.StopAll()

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", logger.Error(err))
		}
	}()

	// 7. Courier bot
	courierBot, err := bot.New(&cfg, pgStore, svc, log)
	if err != nil {
		log.Error("Failed to initialize courier bot", logger.Error(err))
		os.Exit(1)
	}
	go courierBot.Start()

	log.Info("🚀 Courier bot is running", logger.Int("metrics_port", cfg.MetricsPort))

	// 8. Graceful Shutdown listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Stopping bot and shutting down...")
	courierBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warning("Metrics server shutdown", logger.Error(err))
	}
}
