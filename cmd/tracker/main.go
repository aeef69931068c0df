package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"trip-tracker/internal/api"
	"trip-tracker/internal/assign"
	"trip-tracker/internal/config"
	"trip-tracker/internal/directions"
	"trip-tracker/internal/live"
	"trip-tracker/internal/metrics"
	"trip-tracker/internal/publisher"
	"trip-tracker/internal/render"
	"trip-tracker/internal/share"
	"trip-tracker/internal/stops"
	"trip-tracker/internal/store"
	"trip-tracker/internal/trips"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.DisplayThrottle, cfg.PersistThrottle)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// NATS publisher; the trip lookup is attached once the ledger exists.
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, nil, cfg.LogLiveSubjects, publisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer pub.Close()

	registry := stops.NewRegistry(st)
	catalog := trips.NewCatalog(st, registry)
	ledger := assign.NewLedger(st, pub)
	pub.SetTripLookup(ledger)

	hub := live.NewHub()
	liveSvc := live.NewService(st, hub.SourceFor, pub, liveMetrics(mcol),
		cfg.DisplayThrottle, cfg.PersistThrottle, cfg.FirstFixTimeout)

	paths := directions.NewClient(cfg.DirectionsBaseURL, cfg.DirectionsKey, cfg.DirectionsTimeout)
	renderer := render.NewRenderer(catalog, ledger, liveSvc, paths, renderMetrics(mcol))
	shareSvc := share.NewService(st, catalog, ledger, renderer, cfg.ShareTokenTTL)

	server := api.NewServer(registry, catalog, ledger, liveSvc, hub, renderer, shareSvc, st,
		[]byte(cfg.JWTSecret), cfg.Location)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	// Take remaining drivers offline so availability state is not left stale.
	liveSvc.Close(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Printf("shutdown complete")
}

// The collector is optional; a typed nil pointer must not leak into the
// consumers' interface fields.

func liveMetrics(c *metrics.Collector) live.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func publisherMetrics(c *metrics.Collector) publisher.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func renderMetrics(c *metrics.Collector) render.Metrics {
	if c == nil {
		return nil
	}
	return c
}
