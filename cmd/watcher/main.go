package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkov/filingdesk/internal/adapters/events"
	"github.com/avolkov/filingdesk/internal/bootstrap"
	"github.com/avolkov/filingdesk/internal/config"
)

// The watcher follows upload status events on the push channel and keeps its
// catalog and registry views current; the api process owns the jobs.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "watcher")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:        ":" + cfg.WatcherMetricsPort,
		Handler:     app.JobMetrics.Handler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("watcher metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := app.Catalog.Refresh(ctx); err != nil {
		log.Printf("initial catalog refresh error: %v", err)
	}

	log.Printf("watcher subscribed to %s", cfg.NATSSubject)
	err = app.Push.SubscribeUploadStatus(ctx, events.CatalogRelay(app.Catalog, app.Registry))
	if err != nil {
		log.Fatalf("watcher subscribe error: %v", err)
	}
}
