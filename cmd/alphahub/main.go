// main is the entry point of the AlphaHub storage service.
// It initializes the configuration, logger, database, GeoIP provider, and starts the admin API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/internal/clock"
	"github.com/woozymasta/alphahub/internal/config"
	"github.com/woozymasta/alphahub/internal/fake"
	"github.com/woozymasta/alphahub/internal/geoip"
	"github.com/woozymasta/alphahub/internal/logger"
	"github.com/woozymasta/alphahub/internal/maintenance"
	"github.com/woozymasta/alphahub/internal/server"
	"github.com/woozymasta/alphahub/internal/storage"
)

func main() {
	cfg := config.Parse()

	logCloser := logger.Setup(cfg.Logger)
	defer func() { _ = logCloser.Close() }()

	log.Info().Str("driver", cfg.Storage.Driver).Msg("Starting alphahub service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := storage.Options{
		Driver:          cfg.Storage.Driver,
		Path:            cfg.Storage.Path,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	}

	var clk clock.Clock = clock.System{}

	// Fake data spreads over the last 30 days, one report per minute.
	if cfg.Storage.GenerateCount > 0 {
		clk = clock.NewManual(time.Now().UTC().Add(-30*24*time.Hour), time.Minute)
	}
	opts.Clock = clk

	// Database
	store, err := storage.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		res := fake.GenerateData(ctx, store, cfg.Storage.GenerateCount)
		log.Info().
			Int("sightings", res.Sightings).
			Int("gossips", res.Gossips).
			Int("packets", res.Packets).
			Int("failed", res.Failed).
			Msg("Fake data generated")
		return
	}

	if ran, err := maintenance.Run(ctx, cfg, store, clk, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Maintenance task failed")
	} else if ran {
		return
	}

	// GeoIP
	var resolver server.CountryResolver
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		} else {
			resolver = geoProvider
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	srv := server.New(store, resolver, cfg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Admin API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin API failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down admin API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin API forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
