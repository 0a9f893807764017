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

	"github.com/gfaraujo/normabot/internal/bootstrap"
	"github.com/gfaraujo/normabot/internal/config"
	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/observability/logging"
	"github.com/gfaraujo/normabot/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(service, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	observer := metrics.NewPipelineObserver(workerMetrics, service)

	app, err := bootstrap.New(ctx, cfg, observer)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeInbound(ctx, func(handlerCtx context.Context, msg domain.InboundMessage) error {
		workerMetrics.StartMessage()
		workerMetrics.ObserveQueueLag(service, time.Since(msg.ReceivedAt))
		start := time.Now()

		handleErr := app.Handler.Handle(handlerCtx, msg)

		workerMetrics.FinishMessage(service, time.Since(start), handleErr)
		return handleErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
