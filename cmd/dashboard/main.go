// Command dashboard is a terminal front end for the proxy server: it restores
// persisted state, selects the startup location (last selected, falling back
// to the configured default), reconciles the saved-location cache, and prints
// the dashboard once.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mvikstrom/weatherdash/internal/config"
	"github.com/mvikstrom/weatherdash/internal/dashboard"
	"github.com/mvikstrom/weatherdash/internal/models"
	"github.com/mvikstrom/weatherdash/internal/observability"
	"github.com/mvikstrom/weatherdash/internal/savedcache"
	"github.com/mvikstrom/weatherdash/internal/store"
	"github.com/mvikstrom/weatherdash/internal/units"
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

	baseURL := os.Getenv("DASHBOARD_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.ServerPort
	}
	client := dashboard.NewClient(baseURL, cfg.RequestTimeout)

	ctx := context.Background()
	backend, err := store.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		logger.Fatal("sqlite store", zap.Error(err))
	}
	defer func() { _ = backend.Close() }()

	cache := savedcache.New(backend, client, cfg.CacheTTL, logger)
	vm := dashboard.NewViewModel(client, backend, cache, logger)

	vm.Start(ctx, models.Location{
		Name: cfg.DefaultLocationName,
		Lat:  cfg.DefaultLocationLat,
		Lon:  cfg.DefaultLocationLon,
	})

	if state, msg := vm.State(); state != dashboard.StateReady {
		logger.Fatal("dashboard not ready",
			zap.String("state", string(state)),
			zap.String("message", msg))
	}

	render(vm)
}

func render(vm *dashboard.ViewModel) {
	unit := vm.Unit()
	if cw, ok := vm.Current(); ok {
		fmt.Printf("%s, %s\n", cw.City, cw.Country)
		temp := units.ConvertTemperature(float64(cw.Temperature), units.Metric, unit)
		feels := units.ConvertTemperature(float64(cw.FeelsLike), units.Metric, unit)
		fmt.Printf("  %s (feels like %s)  %s\n",
			units.FormatTemperature(temp, unit),
			units.FormatTemperature(feels, unit),
			cw.Description)
		fmt.Printf("  wind %s, humidity %d%%, pressure %d hPa\n",
			units.FormatWindSpeed(cw.WindSpeed, unit), cw.Humidity, cw.Pressure)
		fmt.Printf("  updated %s\n", cw.LastUpdated)
	}

	if forecast := vm.Forecast(); len(forecast) > 0 {
		fmt.Println("Forecast:")
		for _, day := range forecast {
			temp := units.ConvertTemperature(float64(day.Temp), units.Metric, unit)
			fmt.Printf("  %s %s  %s  %s\n",
				day.Day, day.Date, units.FormatTemperature(temp, unit), day.Description)
		}
	}

	saved := vm.SavedLocations()
	if len(saved) == 0 {
		return
	}
	fmt.Println("Saved locations:")
	entries := vm.SavedWeather()
	for _, loc := range saved {
		if entry, ok := entries[loc.Key()]; ok {
			temp := units.ConvertTemperature(float64(entry.Temp), units.Metric, unit)
			fmt.Printf("  %s  %s\n", loc.Name, units.FormatTemperature(temp, unit))
		} else {
			fmt.Printf("  %s  (no data)\n", loc.Name)
		}
	}
}
