package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/Youssaou51/Bright/cmd/api"
	"github.com/Youssaou51/Bright/internal/logging"
	"github.com/Youssaou51/Bright/internal/notification"
	"github.com/Youssaou51/Bright/internal/recipient"
	"github.com/Youssaou51/Bright/pkg/config"
	"github.com/Youssaou51/Bright/pkg/credential"
	"github.com/Youssaou51/Bright/pkg/database"
	"github.com/Youssaou51/Bright/pkg/fcm"
)

// recipientStore is satisfied by both the gorm and the PostgREST stores.
type recipientStore interface {
	notification.RecipientLookup
	notification.TokenPruner
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(os.Stdout, cfg.LogLevel)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exchanger, err := credential.NewExchanger(cfg.Identity, credential.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load service account key")
	}

	var sender notification.Sender
	switch cfg.PushTransport {
	case config.TransportSDK:
		sender, err = fcm.NewSDKSender(ctx, cfg.ProjectID, exchanger.TokenSource())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize firebase messaging")
		}
	default:
		sender = fcm.NewHTTPSender(cfg.FCMEndpoint, cfg.ProjectID, exchanger.TokenSource(), cfg.HTTPTimeout)
	}

	var store recipientStore
	switch cfg.RecipientSource {
	case config.SourceSupabase:
		store = recipient.NewRESTStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.RecipientTable, cfg.HTTPTimeout)
	default:
		db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		store = recipient.NewGormStore(db, cfg.RecipientTable)
	}

	opts := []notification.Option{notification.WithConcurrency(cfg.FanoutConcurrency)}
	if cfg.PruneStaleTokens {
		opts = append(opts, notification.WithPruner(store))
	}
	dispatcher := notification.NewDispatcher(store, exchanger, sender, opts...)

	// Pub/Sub trigger, only when a subscription is configured
	if cfg.PubSubSubscription != "" {
		sub, err := notification.NewSubscriber(ctx, cfg.GoogleProjectID, cfg.PubSubSubscription, cfg.GoogleCredentials, dispatcher)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize subscriber")
		}
		defer sub.Close()
		go func() {
			if err := sub.Start(ctx); err != nil {
				log.Error().Err(err).Msg("subscriber stopped")
			}
		}()
	} else {
		log.Info().Msg("PUBSUB_SUBSCRIPTION not set, subscriber disabled")
	}

	handler := api.NewHandler(dispatcher, exchanger, cfg.WebhookSecret)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("transport", cfg.PushTransport).Str("recipients", cfg.RecipientSource).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
