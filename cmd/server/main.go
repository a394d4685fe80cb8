package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpapi "jobmatch/internal/http"
	"jobmatch/internal/platform/config"
	"jobmatch/internal/platform/httpserver"
	"jobmatch/internal/platform/logger"
)

// main wires dependencies, serves HTTP and runs the audit workers until
// SIGINT or SIGTERM. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := httpserver.New(cfg.Server.Addr, httpapi.NewRouter(a.router))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			if err := w.run(gctx); err != nil {
				logger.ErrorContext(gctx, "worker stopped", "worker", w.name, "error", err)
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("starting jobmatch", "addr", cfg.Server.Addr, "in_memory", cfg.InMemory())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("jobmatch exited with error", "error", err)
		a.close()
		os.Exit(1)
	}
}
