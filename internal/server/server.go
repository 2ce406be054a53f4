// Package server wires the Sandbox Image Builder, Sandbox Lifecycle, Pool
// Allocator, and both ingress paths into one running process. It is the
// shared implementation behind both the runner-server binary and the
// runner CLI's serve subcommand.
package server

import (
	"context"
	"os"
	"time"

	"github.com/docker/docker/client"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/akshayaggarwal99/runner/internal/agentimage"
	"github.com/akshayaggarwal99/runner/internal/api"
	"github.com/akshayaggarwal99/runner/internal/config"
	"github.com/akshayaggarwal99/runner/internal/crypto"
	"github.com/akshayaggarwal99/runner/internal/observer"
	"github.com/akshayaggarwal99/runner/internal/pool"
	"github.com/akshayaggarwal99/runner/internal/queue"
)

// Options overrides Config-derived defaults; the zero value uses config.Load().
type Options struct {
	Port string
}

// Run builds the image, provisions the pool, and serves both ingress paths
// until ctx is canceled. It blocks until shutdown completes.
func Run(ctx context.Context, opts Options) error {
	cfg := config.Load()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := agentimage.Build(ctx, cli, "."); err != nil {
		return err
	}

	lifecycle := pool.NewLifecycle(cli, pool.LifecycleConfig{
		Image:       agentimage.Tag,
		PoolSize:    cfg.PoolSize,
		MemoryBytes: cfg.MemoryBytes(),
		NanoCPUs:    cfg.NanoCPUs(),
		PidsLimit:   50,
	})

	slots, err := lifecycle.Provision(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("ready", len(slots)).Int("requested", cfg.PoolSize).Msg("sandbox pool ready")

	bus := observer.NewBus()
	p := pool.New(slots, bus)

	var consumer *queue.Consumer
	if cfg.QueueEnabled() {
		consumer = queue.NewConsumer(queue.Config{
			BootstrapServers: cfg.KafkaBootstrapServers,
			RequestTopic:     cfg.KafkaRequestTopic,
			ResponseTopic:    cfg.KafkaResponseTopic,
			ConsumerGroup:    cfg.KafkaConsumerGroup,
			RequestKey:       crypto.DeriveKey(cfg.ChatEncryptionKey),
			ResponseKey:      crypto.DeriveKey(cfg.RunnerEncryptionKey),
			StaticCheck:      cfg.StaticCheck,
			DefaultTimeout:   cfg.Timeout,
			MaxTimeout:       cfg.MaxTimeout,
		}, p)

		go func() {
			log.Info().Str("topic", cfg.KafkaRequestTopic).Msg("queue ingress starting")
			if err := consumer.Run(ctx); err != nil {
				log.Warn().Err(err).Msg("queue ingress stopped")
			}
		}()
	} else {
		log.Info().Msg("KAFKA_BOOTSTRAP_SERVERS not set, serving HTTP only")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := api.NewHandler(p, bus, cfg.StaticCheck, cfg.Timeout, cfg.MaxTimeout)
	h.RegisterRoutes(e)

	port := opts.Port
	if port == "" {
		port = "8080"
		if v := os.Getenv("PORT"); v != "" {
			port = v
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("server listening")
		serverErr <- e.Start(":" + port)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
	case err := <-serverErr:
		log.Error().Err(err).Msg("server startup failed")
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing queue consumer")
		}
	}

	teardownCtx, teardownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer teardownCancel()
	lifecycle.Teardown(teardownCtx, slots)
	log.Info().Msg("runner stopped")
	return nil
}
