package relay

import (
	"context"
	"fmt"

	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/messaging"
	"loyalty-relay/internal/models"
)

// OrderRouter routes one decoded order
type OrderRouter interface {
	Handle(ctx context.Context, requestID string, order *models.Order) (*models.RoutingOutcome, error)
}

// Source delivers message bodies to a handler until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber routes webhook payloads taken from the relay queue
type Subscriber struct {
	source Source
	router OrderRouter
	logger *logger.Logger
}

// NewSubscriber creates a new queue relay subscriber
func NewSubscriber(source Source, router OrderRouter, log *logger.Logger) *Subscriber {
	return &Subscriber{
		source: source,
		router: router,
		logger: log,
	}
}

// Start consumes until ctx is cancelled, then closes the source
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	s.logger.Info("service_started", "Queue relay started", requestID, nil)

	err := s.source.StartConsuming(ctx, s.handleWebhook)

	s.logger.Info("graceful_shutdown", "Stopping queue relay", requestID, nil)
	if closeErr := s.source.Close(); closeErr != nil {
		s.logger.Error("shutdown_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if err != nil {
		return fmt.Errorf("consume webhooks: %w", err)
	}
	return nil
}

// handleWebhook decodes one queued webhook body and routes its first order
func (s *Subscriber) handleWebhook(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	order, err := models.DecodeWebhook(body)
	if err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse queued webhook", requestID, err, nil)
		return fmt.Errorf("decode webhook: %w", err)
	}

	s.logger.Debug("order_received", fmt.Sprintf("Received order %s from queue", order.ID), requestID, map[string]interface{}{
		"order_id": order.ID.String(),
		"status":   string(order.Status),
		"type":     string(order.Type),
	})

	outcome, err := s.router.Handle(context.WithoutCancel(ctx), requestID, order)
	if err != nil {
		return fmt.Errorf("route order %s: %w", order.ID, err)
	}

	s.logger.Info("order_routed", fmt.Sprintf("Order %s routed", order.ID), requestID, map[string]interface{}{
		"order_id": order.ID.String(),
		"outcome":  string(outcome.Status),
		"reason":   outcome.Reason,
		"actions":  len(outcome.Actions),
	})

	return nil
}
