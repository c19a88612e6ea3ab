package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/newcomer/internal/engine"
	"github.com/lazypower/newcomer/internal/server"
)

var serveDryRun bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the engagement scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Log outreach instead of sending it")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Data.Watch {
		if err := a.store.Watch(ctx); err != nil {
			a.logger.Warn("member directory watch disabled", "error", err)
		}
	}

	out := a.deliverer(serveDryRun)
	sched := a.scheduler(out)
	if a.cfg.Scheduler.Enabled {
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Deps{
		Store:      a.store,
		Tracker:    engine.NewTracker(a.store, out, a.logger),
		Scheduler:  sched,
		Presenter:  a.presenter(),
		Panel:      a.panel,
		Ledger:     a.ledger,
		Thresholds: a.thresholds(),
		Bands:      a.bands(),
		Logger:     a.logger,
	}, VersionString())
	addr := a.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("newcomer serving", "addr", addr, "data", a.cfg.Data.Dir, "members", a.store.Len())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	a.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return httpServer.Shutdown(shutdownCtx)
}
