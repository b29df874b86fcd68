package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/cmd/blobs3/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

This command will:
1. Load configuration, chain definitions and access rules
2. Probe every monitored chain and schedule periodic health checks
3. Serve the HTTP API and the metrics endpoint
4. Handle graceful shutdown on SIGINT or SIGTERM`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	application := app.New(ctx, cfg)
	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Run()
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
		cancel()
		<-errChan
	case runErr = <-errChan:
		cancel()
	}

	if err := application.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	if runErr != nil {
		return fmt.Errorf("application error: %w", runErr)
	}
	return nil
}
