package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/gfaraujo/normabot/internal/adapters/http"
	"github.com/gfaraujo/normabot/internal/bootstrap"
	"github.com/gfaraujo/normabot/internal/config"
	"github.com/gfaraujo/normabot/internal/observability/logging"
	"github.com/gfaraujo/normabot/internal/observability/metrics"
)

const service = "bot"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(service, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	router := httpadapter.NewRouter(
		app.Queue, httpMetrics, service,
		cfg.WABAVerifyToken, cfg.WABAAppSecret,
	)

	mux := http.NewServeMux()
	mux.Handle("/", router.Handler())
	mux.Handle("/metrics", httpMetrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("webhook listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("webhook server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("webhook shutdown error", "error", err)
	}
}
