// Command runner-server is the entry point for the Sandboxed Execution
// Service: it builds the worker image, provisions the sandbox pool, and
// serves the HTTP ingress (plus the queue ingress, when configured) until a
// shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akshayaggarwal99/runner/internal/server"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("RUNNER_ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	log.Info().Msg("runner starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	if err := server.Run(ctx, server.Options{}); err != nil {
		log.Fatal().Err(err).Msg("runner exited with error")
	}
}
