package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/plc-fault-explainer/internal/bootstrap"
	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/watch"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/logging"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	watchDir := strings.TrimSpace(cfg.KBWatchDir)
	if app.Queue == nil && watchDir == "" {
		slog.Error("worker_idle", "reason", "neither NATS_URL nor KB_WATCH_DIR is set")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if app.Queue != nil {
		g.Go(func() error {
			slog.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
			return app.Queue.SubscribeIngestJobs(gctx, func(handlerCtx context.Context, job domain.IngestJob) error {
				return processJob(handlerCtx, app, workerMetrics, cfg.IngestJobTimeout, job)
			})
		})
	}

	if watchDir != "" {
		watcher := watch.New(watchDir, 0, func(wctx context.Context, paths []string) error {
			jobCtx, cancel := context.WithTimeout(wctx, cfg.IngestJobTimeout)
			defer cancel()

			done := workerMetrics.BeginJob(metrics.SourceWatch)
			report, err := app.ProcessUC.ProcessFiles(jobCtx, paths)
			done(domain.IngestKnowledgeBase, report, err)
			if err != nil {
				return err
			}
			slog.Info("kb_watch_ingested", "files", len(paths), "chunks", report.Chunks, "skipped", report.Skipped)
			return nil
		})
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_stopped", "error", err.Error())
		os.Exit(1)
	}
}

func processJob(
	ctx context.Context,
	app *bootstrap.App,
	workerMetrics *metrics.WorkerMetrics,
	timeout time.Duration,
	job domain.IngestJob,
) error {
	workerMetrics.ObserveQueueLag(job.CreatedAt)

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := workerMetrics.BeginJob(metrics.SourceQueue)
	report, err := app.ProcessUC.ProcessJob(jobCtx, job)
	done(job.Kind, report, err)
	if err != nil {
		slog.Error("ingest_job_failed", "job_id", job.ID, "kind", string(job.Kind), "filename", job.Filename, "error", err.Error())
		return err
	}
	slog.Info("ingest_job_done", "job_id", job.ID, "kind", string(job.Kind), "chunks", report.Chunks)
	return nil
}
