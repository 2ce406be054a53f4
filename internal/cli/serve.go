package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/akshayaggarwal99/runner/internal/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sandboxed execution runner",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
			cancel()
		}()

		if err := server.Run(ctx, server.Options{Port: servePort}); err != nil {
			log.Fatal().Err(err).Msg("runner exited with error")
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP server port (default: $PORT or 8080)")
	RootCmd.AddCommand(serveCmd)
}
