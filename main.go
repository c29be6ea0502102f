package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"vote-program/api"
	"vote-program/config"
	"vote-program/executor"
	"vote-program/ledger"
	"vote-program/storage"
	"vote-program/storage/postgres"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("node stopped")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stderr
	if !cfg.LogJSON {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(cfg.LogLevel).With().Timestamp().Logger()
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	storageDir, err := setupStorageDirectory(cfg.StorageDir)
	if err != nil {
		return errors.Wrap(err, "failed to setup storage")
	}

	backend, closeBackend, err := openBackend(ctx, cfg, storageDir, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	store, err := storage.NewStore(backend, cfg.Layout, cfg.Space, logger)
	if err != nil {
		return err
	}

	var chainStore storage.ChainStore = storage.NewMemoryChainStore()
	if cfg.Backend != config.BackendMemory {
		if chainStore, err = storage.NewJSONChainStore(storageDir); err != nil {
			return err
		}
	}
	l, err := ledger.New(chainStore, cfg.BlockSize, cfg.Difficulty, logger)
	if err != nil {
		return err
	}

	processor := executor.NewProcessor(store, l, executor.NewMetrics(), logger)
	queue := executor.NewQueue(processor, cfg.Workers, cfg.QueueSize, logger)
	queue.Start()

	server := api.NewServer(queue, store, l, processor.Metrics(), logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("backend", cfg.Backend).
			Str("layout", string(cfg.Layout)).
			Int("space", cfg.Space).
			Msg("starting vote program node")
		serverChan <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-serverChan:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = errors.Wrap(err, "server error")
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
		cancel()
	}

	queue.Stop()
	if err := l.Flush(); err != nil {
		logger.Error().Err(err).Msg("failed to seal pending receipts")
	}
	logger.Info().Int("blocks", len(l.Blocks())).Msg("shutdown completed")
	return serveErr
}

func setupStorageDirectory(baseDir string) (string, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return "", err
	}
	return absPath, nil
}

func openBackend(ctx context.Context, cfg *config.Config, storageDir string, logger zerolog.Logger) (storage.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(), func() {}, nil

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		backend := postgres.NewBackend(db, logger)
		if err := backend.Migrate(ctx); err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		return backend, func() {
			if err := backend.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close postgres")
			}
		}, nil

	default:
		backend, err := storage.NewFileBackend(storageDir)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil
	}
}
