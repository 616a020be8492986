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
	httpadapter "github.com/avolkov/filingdesk/internal/adapters/http"
	"github.com/avolkov/filingdesk/internal/bootstrap"
	"github.com/avolkov/filingdesk/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.Catalog.Refresh(ctx); err != nil {
		log.Printf("initial catalog refresh error: %v", err)
	}

	// Push-channel signals resolve this process's in-flight jobs ahead of
	// their poll loops. Best effort: the subscription dying only means jobs
	// fall back to polling.
	go func() {
		if err := app.Push.SubscribeUploadStatus(ctx, events.JobRelay(app.Tracker)); err != nil && ctx.Err() == nil {
			log.Printf("upload status subscription error: %v", err)
		}
	}()

	router := httpadapter.NewRouter(
		httpadapter.Config{
			RateLimitRPS:     cfg.RateLimitRPS,
			RateLimitBurst:   cfg.RateLimitBurst,
			MaxInFlight:      cfg.MaxInFlight,
			BackpressureWait: time.Duration(cfg.BackpressureWaitSeconds) * time.Second,
			MaxUploadBytes:   cfg.MaxUploadBytes,
		},
		app.Catalog, app.Registry, app.Linker, app.Tracker,
		app.Documents, app.Directories, app.Summaries, app.Reports,
	).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.HTTPMetrics.Handler())
	mux.Handle("/", app.HTTPMetrics.Middleware("api", router))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
