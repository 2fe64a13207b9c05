package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinscribe/clinical-scribe/internal/bootstrap"
	"github.com/clinscribe/clinical-scribe/internal/config"
	"github.com/clinscribe/clinical-scribe/internal/observability/logging"
	"github.com/clinscribe/clinical-scribe/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	app, err := bootstrap.New(ctx, cfg, workerMetrics, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		log.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// The per-job deadline covers the full transcription wait plus the
	// downstream extraction and composition calls.
	jobTimeout := cfg.TranscriptionMaxWait + 5*time.Minute

	log.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeNoteJobs(ctx, func(handlerCtx context.Context, jobID string) error {
		queuedAt := time.Time{}
		if job, err := app.Reader.GetJob(handlerCtx, jobID); err == nil {
			queuedAt = job.CreatedAt
		}
		workerMetrics.ObserveJobStart(queuedAt)

		start := time.Now()
		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		err := app.Coordinator.ProcessJob(processCtx, jobID)
		result := "ok"
		if err != nil {
			result = "error"
		}
		workerMetrics.ObserveJobDone("worker", result, time.Since(start))
		return err
	})
	if err != nil {
		log.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
