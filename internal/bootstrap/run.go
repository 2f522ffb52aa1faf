package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/config"
	httpx "github.com/ERLANRAHMAT/cf-clearance-scraper/internal/http"
)

const shutdownGrace = 10 * time.Second

// Run performs the recovery/boot sequence and serves until SIGINT/SIGTERM:
// hydrate the queue from the snapshot (resuming pending work), start the TTL
// sweeper and the HTTP server, then drain gracefully on shutdown.
func Run(ctx context.Context, cfg *config.AppConfig, c *Container, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Queue.Start(ctx); err != nil {
		return err
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Queue:     c.Queue,
		Admission: c.Admission,
		Engine:    c.Engine,
		AuthToken: cfg.HTTP.AuthToken,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.InfoContext(groupCtx, "starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return c.Sweeper.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := group.Wait()

	// Let an in-flight job finish recording its result before exiting.
	c.Queue.Wait()
	if cerr := c.Metrics.Close(); cerr != nil {
		logger.Error("close metrics sink", "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
