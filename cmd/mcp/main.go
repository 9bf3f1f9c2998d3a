package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/plc-fault-explainer/internal/adapters/mcp"
	"github.com/kirillkom/plc-fault-explainer/internal/bootstrap"
	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.New(os.Stderr, "mcp", cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
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

	srv := mcpadapter.NewServer(app.ExplainUC, app.Retrieval, cfg.RAGTopK)
	slog.Info("mcp_serving", "transport", "stdio")
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp_serve_failed", "error", err.Error())
		os.Exit(1)
	}
}
