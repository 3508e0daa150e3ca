package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"glowbudget/internal/cache"
	"glowbudget/internal/cli"
	"glowbudget/internal/config"
	apphttp "glowbudget/internal/http"
	"glowbudget/internal/ledger"
	"glowbudget/internal/log"
	"glowbudget/internal/search"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if res.Notifier != nil {
		opts = append(opts, ledger.WithNotifier(res.Notifier))
	}
	store, err := ledger.Open(ctx, res.KV, opts...)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	compiler := search.NewCompiler(cfg.SearchCacheSize, cfg.SearchCacheTTL)
	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register("search", compiler.Cleaner())

	srv, err := apphttp.NewServer(":"+cfg.Port, store,
		apphttp.WithCompiler(compiler),
		apphttp.WithLogger(logger),
		apphttp.WithImportLimit(cfg.ImportMaxBytes))
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return caches.Run(gctx, cfg.SearchCacheTTL)
	})
	g.Go(func() error {
		logger.Info("Starting GlowBudget", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
