package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/plc-fault-explainer/internal/adapters/http"
	"github.com/kirillkom/plc-fault-explainer/internal/bootstrap"
	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/logging"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithRegisterer(serviceName, httpMetrics.Registry()))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	go func() {
		if err := app.RunIndexSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("index_sync_stopped", "error", err.Error())
		}
	}()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Explainer: app.ExplainUC,
		Ingestor:  app.IngestUC,
		Index:     app.Index,
		History:   app.HistoryUC,
		LogFiles:  app.LogFileUC,
		Breakers:  app.Breakers,
	}, httpadapter.WithMetrics(httpMetrics.Handler(), httpMetrics))

	server := &http.Server{
		Handler:      httpMetrics.Middleware(serviceName, router.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_failed", "port", cfg.APIPort, "error", err.Error())
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err.Error())
	}
}
