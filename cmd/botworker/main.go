// Package main wires together the botworker service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/browserbot-relay/internal/api"
	archivegcs "github.com/JakeFAU/browserbot-relay/internal/archive/gcs"
	archivelocal "github.com/JakeFAU/browserbot-relay/internal/archive/local"
	archivememory "github.com/JakeFAU/browserbot-relay/internal/archive/memory"
	"github.com/JakeFAU/browserbot-relay/internal/botworker"
	"github.com/JakeFAU/browserbot-relay/internal/channel"
	channelmemory "github.com/JakeFAU/browserbot-relay/internal/channel/memory"
	channelredis "github.com/JakeFAU/browserbot-relay/internal/channel/redis"
	"github.com/JakeFAU/browserbot-relay/internal/config"
	"github.com/JakeFAU/browserbot-relay/internal/logging"
	"github.com/JakeFAU/browserbot-relay/internal/metrics"
	"github.com/JakeFAU/browserbot-relay/internal/notify"
	notifypubsub "github.com/JakeFAU/browserbot-relay/internal/notify/pubsub"
	"github.com/JakeFAU/browserbot-relay/internal/participant"
	participantmemory "github.com/JakeFAU/browserbot-relay/internal/participant/memory"
	participantpg "github.com/JakeFAU/browserbot-relay/internal/participant/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch, err := buildChannel(ctx, cfg)
	if err != nil {
		logger.Error("channel init failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			logger.Warn("channel close failed", zap.Error(closeErr))
		}
	}()

	participants, cleanup, err := buildParticipantStore(ctx, cfg)
	if err != nil {
		logger.Error("participant store init failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	pageArchive, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Error("page archive init failed", zap.Error(err))
		os.Exit(1)
	}

	// Real deployments replace the static factory with the application's bot
	// logic; an empty script means every participant reports exhaustion
	// immediately.
	worker := botworker.NewWorker(
		participants,
		botworker.StaticSourceFactory(),
		pageArchive,
		botworker.WorkerConfig{PruneLimit: cfg.Worker.PruneLimit},
		logger.Named("botworker"),
	)

	if relay, relayCleanup, relayErr := buildCompletionRelay(ctx, cfg, ch, logger); relayErr != nil {
		logger.Error("completion relay init failed", zap.Error(relayErr))
		os.Exit(1)
	} else if relay != nil {
		defer relayCleanup()
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("completion relay error", zap.Error(err))
			}
		}()
	}

	apiServer := api.NewServer(ch, cfg.Channel.Prefix, cfg.Channel.Charset, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listenDone := make(chan struct{})
	go func() {
		defer close(listenDone)
		err := worker.Listen(ctx, ch, botworker.ListenConfig{
			Prefix:     cfg.Channel.Prefix,
			Charset:    cfg.Channel.Charset,
			PopTimeout: cfg.PopTimeout(),
		})
		if err != nil {
			logger.Error("receive loop error", zap.Error(err))
			stop()
		}
	}()

	go func() {
		logger.Info("ops server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-listenDone:
	case <-shutdownCtx.Done():
		logger.Warn("receive loop did not stop in time")
	}
	logger.Info("shutdown complete")
}

func buildChannel(ctx context.Context, cfg config.Config) (channel.Channel, error) {
	if !cfg.Redis.Enabled {
		// Brokerless mode only makes sense when request handling shares the
		// process; the in-memory channel keeps the protocol exercised.
		return channelmemory.New(), nil
	}
	ch, err := channelredis.New(ctx, channelredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return ch, nil
}

func buildParticipantStore(ctx context.Context, cfg config.Config) (participant.Store, func(), error) {
	switch cfg.Participants.Provider {
	case "postgres":
		store, err := participantpg.NewStore(ctx, participantpg.StoreConfig{
			DSN:      cfg.Participants.DSN,
			Table:    cfg.Participants.Table,
			MaxConns: cfg.Participants.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return participantmemory.NewStore(), func() {}, nil
	}
}

// buildCompletionRelay bridges completion broadcasts from the channel's own
// pub/sub onto a Pub/Sub topic, when one is configured. Returns a nil relay
// when the bridge does not apply.
func buildCompletionRelay(
	ctx context.Context,
	cfg config.Config,
	ch channel.Channel,
	logger *zap.Logger,
) (*notify.Relay, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, nil, nil
	}
	src, ok := ch.(channel.Subscriber)
	if !ok {
		return nil, nil, fmt.Errorf("channel does not support subscriptions; cannot relay completions")
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	cleanup := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	pattern := botworker.GroupKey(cfg.Channel.Prefix, "*")
	relay := notify.NewRelay(src, notifypubsub.New(topic), pattern, logger.Named("relay"))
	return relay, cleanup, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (botworker.PageArchive, error) {
	switch cfg.Archive.Provider {
	case "", "none":
		return nil, nil
	case "memory":
		return archivememory.NewStore(cfg.Archive.Prefix), nil
	case "local":
		store, err := archivelocal.New(archivelocal.Config{
			BaseDir: cfg.Archive.Dir,
			Prefix:  cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := archivegcs.New(client, archivegcs.Config{
			Bucket: cfg.Archive.GCSBucket,
			Prefix: cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}
