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

	"golang.org/x/sync/errgroup"

	"loyalty-relay/internal/config"
	"loyalty-relay/internal/database"
	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/loyalty"
	"loyalty-relay/internal/messaging"
	"loyalty-relay/internal/models"
	"loyalty-relay/internal/router"
	"loyalty-relay/internal/services/relay"
	"loyalty-relay/internal/services/webhook"
)

const (
	modeWebhookService = "webhook-service"
	modeQueueRelay     = "queue-relay"
	modeEnqueue        = "enqueue"
)

func main() {
	var (
		mode       = flag.String("mode", modeWebhookService, "Service mode (webhook-service, queue-relay, enqueue)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		port       = flag.Int("port", 0, "HTTP port, overrides server.port")
		prefetch   = flag.Int("prefetch", 1, "RabbitMQ prefetch count for queue-relay")
		payload    = flag.String("file", "", "Webhook JSON file to publish in enqueue mode")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":             *mode,
		"port":             cfg.Server.Port,
		"program_id":       cfg.Loyalty.ProgramID,
		"token_configured": cfg.Loyalty.Token != "",
		"journal_enabled":  cfg.Database.Enabled,
		"rabbitmq_enabled": cfg.RabbitMQ.Enabled,
	})
	if cfg.Loyalty.Token == "" {
		log.Info("config_warning", "Loyalty token is not configured, every order will be ignored", requestID, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case modeWebhookService:
		err = runWebhookService(ctx, cfg, log)
	case modeQueueRelay:
		err = runQueueRelay(ctx, cfg, log, *prefetch)
	case modeEnqueue:
		err = runEnqueue(ctx, cfg, log, *payload)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// buildRouter wires the provider client and any configured outcome recorders.
// The returned cleanup closes whatever was opened.
func buildRouter(ctx context.Context, cfg *config.Config, log *logger.Logger) (*router.Router, *messaging.Connection, func(), error) {
	var (
		recorders []router.Recorder
		closers   []func()
		conn      *messaging.Connection
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("db_connected", "Dispatch journal enabled", "startup", nil)
		recorders = append(recorders, database.NewJournal(db))
	}

	if cfg.RabbitMQ.Enabled {
		c, err := messaging.New(cfg, log)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		conn = c
		closers = append(closers, func() { _ = c.Close() })
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
		recorders = append(recorders, messaging.NewPublisher(c, log))
	}

	client := loyalty.NewClient(cfg.Loyalty)
	r := router.New(client, client, log,
		router.WithSettleMargin(cfg.Loyalty.SettleMargin),
		router.WithRecorders(recorders...),
	)
	return r, conn, cleanup, nil
}

// runWebhookService serves the ordering platform's webhook over HTTP
func runWebhookService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	r, _, cleanup, err := buildRouter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := webhook.NewHandler(r, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("service_started", fmt.Sprintf("Webhook service started on port %d", cfg.Server.Port), requestID, nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful_shutdown", "Shutting down HTTP server", requestID, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runQueueRelay routes webhook payloads taken from RabbitMQ
func runQueueRelay(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	if !cfg.RabbitMQ.Enabled {
		return errors.New("queue-relay requires rabbitmq.enabled: true")
	}

	r, conn, cleanup, err := buildRouter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	consumer := messaging.NewConsumer(conn, log, messaging.WebhookQueue, "loyalty-relay", prefetch)
	return relay.NewSubscriber(consumer, r, log).Start(ctx)
}

// runEnqueue publishes a stored webhook payload to the relay queue, e.g. to replay a delivery
func runEnqueue(ctx context.Context, cfg *config.Config, log *logger.Logger, path string) error {
	if path == "" {
		return errors.New("enqueue requires --file")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if _, err := models.DecodeWebhook(body); err != nil {
		return fmt.Errorf("payload rejected: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	if err := messaging.NewPublisher(conn, log).PublishWebhook(ctx, body); err != nil {
		return err
	}
	log.Info("webhook_enqueued", fmt.Sprintf("Published %s to %s", path, messaging.WebhookQueue), "", nil)
	return nil
}
