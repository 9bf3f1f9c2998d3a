// Command faultctl ingests PLC logs, manuals and knowledge-base documents and asks
// for fault explanations from the terminal.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/plc-fault-explainer/internal/bootstrap"
	"github.com/kirillkom/plc-fault-explainer/internal/config"
	"github.com/kirillkom/plc-fault-explainer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stderr, "faultctl", cfg.LogLevel, "text"))

	root, closeServices := newRootCmd(func(ctx context.Context) (*services, func(), error) {
		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return &services{
			Explainer: app.ExplainUC,
			Ingestor:  app.IngestUC,
			Index:     app.Index,
			Queued:    app.Queue != nil,
		}, app.Close, nil
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	closeServices()
	stop()
	if err != nil {
		os.Exit(1)
	}
}
