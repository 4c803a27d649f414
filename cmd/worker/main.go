package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knowlab/corpusqa/internal/bootstrap"
	"github.com/knowlab/corpusqa/internal/config"
	"github.com/knowlab/corpusqa/internal/observability/logging"
	"github.com/knowlab/corpusqa/internal/observability/metrics"
)

// The worker listens for indexed-batch events and rebuilds the full-text
// index from the ledger so lexical retrieval stays consistent with whatever
// postgres says was ingested.
func main() {
	cfg := config.Load()
	logger := logging.Setup("corpusqa-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCorpusIndexed(ctx, func(handlerCtx context.Context, batchID string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartRebuild()
		start := time.Now()
		rebuildErr := rebuildIndex(rebuildCtx, app, batchID)
		workerMetrics.FinishRebuild("worker", time.Since(start), rebuildErr)
		return rebuildErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func rebuildIndex(ctx context.Context, app *bootstrap.App, batchID string) error {
	passages, err := app.Ledger.ListPassages(ctx)
	if err != nil {
		return err
	}
	if err := app.FullText.Rebuild(ctx, passages); err != nil {
		return err
	}
	app.Logger.Info("index_rebuilt", "batch_id", batchID, "passages", len(passages))
	return nil
}
