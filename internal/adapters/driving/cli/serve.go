package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and worker pool",
	Long: `Starts the HTTP API, the background worker pool that drains the
task queue, and the ingest directory watcher when one is configured.
The process runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if runtime == nil {
		return errors.New("runtime not configured")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := runtime.Workers.Start(ctx); err != nil {
		return err
	}

	if runtime.Watcher != nil {
		if err := runtime.Watcher.Start(ctx); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- runtime.Server.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case s := <-sig:
		runtime.Log.Info().Stringer("signal", s).Msg("shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if runtime.Watcher != nil {
		if err := runtime.Watcher.Stop(); err != nil {
			runtime.Log.Warn().Err(err).Msg("watcher stop failed")
		}
	}
	if err := runtime.Workers.Stop(shutdownCtx); err != nil {
		runtime.Log.Warn().Err(err).Msg("worker pool stop failed")
	}
	return runtime.Server.Shutdown(shutdownCtx)
}
