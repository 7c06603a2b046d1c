package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"askcode/internal/api"
	"askcode/internal/bootstrap"
)

var (
	serveAddr            string
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering API over HTTP",
	Long: `Start the HTTP API. Endpoints:
  POST /api/query          POST /api/suggest
  POST /api/docs/generate  GET  /api/metrics
  GET  /health             GET  /metrics (prometheus)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	return withContainer(func(c *bootstrap.Container) error {
		addr := serveAddr
		if addr == "" {
			addr = c.Config.Server.Address
		}

		srv := api.New(c.Engine, c.Registry, c.Log.Named("http"))

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(addr)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		c.Log.Info("shutting down", zap.Duration("timeout", serveShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	})
}
