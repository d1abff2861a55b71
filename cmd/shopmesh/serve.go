package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/shopmesh/httpapi"
	"github.com/hupe1980/shopmesh/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat server",
	Long: `Start the HTTP server exposing:
  POST /v1/chat      JSON {"message","session_id"}
  POST /get          form fields msg and thread_id
  GET  /v1/chat/ws   websocket chat
  GET  /health       liveness
  GET  /metrics      Prometheus metrics
  GET  /v1/tools     registered tools and their parameter schemas
  POST /v1/tools/{name}  call a tool directly with JSON arguments

When ingest.file is set the catalog is loaded before the server starts.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Ingest.File != "" {
		stats, err := a.ingestFile(ctx, cfg.Ingest.File, cfg.Ingest.BatchSize, cfg.Ingest.SkipExisting)
		if err != nil {
			return err
		}
		a.logger.Info("serve.catalog.loaded", "indexed", stats.Indexed, "skipped", stats.Skipped)
	}

	if cfg.Sessions.IdleTTL > 0 {
		sw, err := a.mesh.NewSweeper(cfg.Sessions.IdleTTL, func(o *session.SweeperOptions) {
			o.Schedule = cfg.Sessions.SweepSchedule
		})
		if err != nil {
			return err
		}
		sw.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			sw.Stop(stopCtx)
		}()
	}

	srv := httpapi.New(cfg.Server, a.mesh.Agent(), func(o *httpapi.Options) {
		o.Metrics = a.metrics
		o.Tools = a.mesh.Tools()
		o.Logger = a.logger
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serve.http.listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("serve.shutdown.started")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
