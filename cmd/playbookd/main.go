package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/convohq/playbook/internal/actions"
	"github.com/convohq/playbook/internal/engine"
	"github.com/convohq/playbook/internal/expressions"
	"github.com/convohq/playbook/internal/handoff"
	"github.com/convohq/playbook/internal/knowledge"
	"github.com/convohq/playbook/internal/logging"
	"github.com/convohq/playbook/internal/scheduler"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/internal/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "playbookd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	jq := expressions.NewGoJQEngine()
	registry := actions.NewRegistry()
	for _, action := range []actions.Action{
		actions.NewCaptureContactAction(st, st, logger),
		actions.NewAddTagAction(st, st, logger),
		actions.NewSetScoreAction(st, st, logger),
		actions.NewWebhookAction(&http.Client{Timeout: cfg.webhookTimeout()}, jq, logger),
	} {
		if err := registry.Register(action); err != nil {
			return fmt.Errorf("register action: %w", err)
		}
	}

	dispatcher := handoff.NewQueueDispatcher(st, st, st, logger)
	eng := engine.NewEngine(st, st, st, registry, dispatcher, expressions.NewExprEngine(), logger)

	validator, err := validation.NewStepValidator()
	if err != nil {
		return fmt.Errorf("compile step schemas: %w", err)
	}

	var searcher knowledge.Searcher
	if cfg.KnowledgeURL != "" {
		searcher = knowledge.NewHTTPSearcher(cfg.KnowledgeURL, nil, logger)
	}

	sweeper := scheduler.NewSweeper(st, cfg.SweepSchedule, cfg.abandonAfter(), logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newAPIHandler(eng, st, validator, searcher, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("playbookd started",
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("db_path", cfg.DBPath),
		slog.String("sweep_schedule", cfg.SweepSchedule))

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("playbookd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
