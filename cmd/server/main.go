package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/config"
	"github.com/mvikstrom/weatherdash/internal/httpapi"
	"github.com/mvikstrom/weatherdash/internal/lifecycle"
	"github.com/mvikstrom/weatherdash/internal/observability"
	"github.com/mvikstrom/weatherdash/internal/savedcache"
	"github.com/mvikstrom/weatherdash/internal/store"
	"github.com/mvikstrom/weatherdash/internal/upstream"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := upstream.NewOpenWeatherClient(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPILang,
		cfg.WeatherAPITimeout,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	placesClient := upstream.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesAPIURL, cfg.PlacesAPITimeout)
	if cfg.PlacesAPIKey == "" {
		logger.Warn("places API key not set; city photo lookups will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend store.Store
	var memcacheCloser *store.MemcachedStore
	var sqliteCloser *store.SQLiteStore
	switch cfg.StoreBackend {
	case "memcached":
		mc, err := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		backend = mc
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "sqlite":
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite store", zap.Error(err))
		}
		sqliteCloser = db
		backend = db
		logger.Info("store backend: sqlite", zap.String("path", cfg.SQLitePath))
	default:
		backend = store.NewMemoryStore()
		logger.Info("store backend: memory")
	}

	weatherCache := savedcache.New(backend, savedcache.NewUpstreamFetcher(weatherClient, logger), cfg.CacheTTL, logger)
	refresher := savedcache.NewRefresher(weatherCache, backend, cfg.RefreshInterval, logger)
	if err := refresher.Start(ctx); err != nil {
		logger.Fatal("cache refresher", zap.Error(err))
	}

	handler := httpapi.NewHandler(weatherClient, placesClient, logger)

	healthConfig := &httpapi.HealthConfig{
		PhotoAPIConfigured: cfg.PlacesAPIKey != "",
	}
	if memcacheCloser != nil {
		healthConfig.StorePing = memcacheCloser.Ping
	}
	healthHandler := httpapi.NewHealthHandler(healthConfig, logger)

	router := mux.NewRouter()
	router.Use(httpapi.CorrelationIDMiddleware(logger))
	router.Use(httpapi.MetricsMiddleware)
	router.HandleFunc("/health", healthHandler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httpapi.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	apiRouter.HandleFunc("/forecast", handler.GetForecast).Methods("GET")
	apiRouter.HandleFunc("/search", handler.SearchLocation).Methods("GET")
	apiRouter.HandleFunc("/city-photo", handler.GetCityPhoto).Methods("GET")
	apiRouter.HandleFunc("/saved-weather", handler.GetSavedLocationWeather).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httpapi.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := httpapi.WaitForInFlight(waitCtx, cfg.DrainCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httpapi.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if sqliteCloser != nil {
		if err := sqliteCloser.Close(); err != nil {
			logger.Error("sqlite close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
