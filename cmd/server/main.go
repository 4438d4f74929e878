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

	"github.com/tanuj-rai/matrixci/internal/core"
	"github.com/tanuj-rai/matrixci/internal/storage"
	"github.com/tanuj-rai/matrixci/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := envOr("MATRIXCI_HTTP_ADDR", ":8080")
	matrixPath := envOr("MATRIXCI_MATRIX_FILE", "matrix.yaml")

	matrix, err := core.LoadMatrix(matrixPath)
	if err != nil {
		logger.Error("cannot load matrix file", "path", matrixPath, "error", err)
		os.Exit(2)
	}

	var st store.Store
	if dbURL := os.Getenv("MATRIXCI_DATABASE_URL"); dbURL != "" {
		pg, err := store.OpenPostgres(ctx, dbURL)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres run store")
	} else {
		st = store.NewMemory()
		logger.Info("using in-memory run store")
	}

	runner := core.NewRunner(logger)
	if os.Getenv("MATRIXCI_MINIO_ENDPOINT") != "" {
		objCfg, err := storage.ObjectStoreConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		artifacts, err := storage.NewObjectStore(objCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := artifacts.EnsureBucket(startupCtx); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		runner.Artifacts = artifacts
	}
	if agentURL := os.Getenv("MATRIXCI_AGENT_URL"); agentURL != "" {
		runner.Exec = core.NewAgentExecutor(agentURL)
	}

	api := newAPI(logger, st, runner, matrix)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("matrixci server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
