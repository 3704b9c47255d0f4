package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/models"
)

// channelPublisher is the subset of *amqp091.Channel the publisher needs
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn    *Connection
	channel func() (channelPublisher, error)
	logger  *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	p := &Publisher{
		conn:   conn,
		logger: log,
	}
	p.channel = p.liveChannel
	return p
}

func (p *Publisher) liveChannel() (channelPublisher, error) {
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}
	return p.conn.Channel(), nil
}

// PublishWebhook publishes a raw webhook payload to the relay queue
func (p *Publisher) PublishWebhook(ctx context.Context, body []byte) error {
	return p.publishRaw(ctx, WebhookExchange, WebhookRoutingKey, body, true)
}

// PublishOutcome publishes a routing outcome to the outcomes fanout exchange
func (p *Publisher) PublishOutcome(ctx context.Context, msg *models.OutcomeMessage) error {
	return p.publishMessage(ctx, OutcomesExchange, "", msg, false)
}

// Record implements router.Recorder by publishing the outcome
func (p *Publisher) Record(ctx context.Context, requestID string, order *models.Order, outcome *models.RoutingOutcome) error {
	return p.PublishOutcome(ctx, models.CreateOutcomeMessage(requestID, order.ID.String(), outcome))
}

func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey string, message interface{}, persistent bool) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.publishRaw(ctx, exchange, routingKey, body, persistent)
}

func (p *Publisher) publishRaw(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		publishing,
	)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			"", err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", exchange),
		"", map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_size": len(body),
		})

	return nil
}
