package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/models"
)

type fakeAcknowledger struct {
	acked    int
	rejected int
	requeue  bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.rejected++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.rejected++
	a.requeue = requeue
	return nil
}

func newTestConsumer() *Consumer {
	return NewConsumer(nil, logger.Nop(), WebhookQueue, "test", 1)
}

func TestProcessMessage_AcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	var seen []byte

	newTestConsumer().processMessage(context.Background(), amqp091.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"orders": []}`),
	}, func(ctx context.Context, body []byte) error {
		seen = body
		return nil
	})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.rejected)
	assert.Equal(t, `{"orders": []}`, string(seen))
}

func TestProcessMessage_RejectsWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}

	newTestConsumer().processMessage(context.Background(), amqp091.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{}`),
	}, func(ctx context.Context, body []byte) error {
		return errors.New("malformed")
	})

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestProcessMessage_RejectsOnPanic(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"string", "router exploded"},
		{"error", errors.New("nil map write")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}

			assert.NotPanics(t, func() {
				newTestConsumer().processMessage(context.Background(), amqp091.Delivery{
					Acknowledger: ack,
					Body:         []byte(`{"orders": [{"id": 1}]}`),
				}, func(ctx context.Context, body []byte) error {
					panic(tt.value)
				})
			})

			assert.Equal(t, 0, ack.acked)
			assert.Equal(t, 1, ack.rejected)
			assert.False(t, ack.requeue)
		})
	}
}

type capturedPublish struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	published []capturedPublish
	err       error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.published = append(f.published, capturedPublish{exchange: exchange, key: key, msg: msg})
	return f.err
}

func newTestPublisher(ch *fakeChannel) *Publisher {
	return &Publisher{
		logger: logger.Nop(),
		channel: func() (channelPublisher, error) {
			return ch, nil
		},
	}
}

func TestPublisher_RecordPublishesOutcome(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	order := &models.Order{ID: "7", Status: models.StatusPending, CustomerEmail: "ana@example.com"}
	outcome := models.Ignored("unhandled status")

	require.NoError(t, p.Record(context.Background(), "req-1", order, outcome))

	require.Len(t, ch.published, 1)
	pub := ch.published[0]
	assert.Equal(t, OutcomesExchange, pub.exchange)
	assert.Equal(t, "", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp091.Transient, pub.msg.DeliveryMode)

	var msg models.OutcomeMessage
	require.NoError(t, json.Unmarshal(pub.msg.Body, &msg))
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Equal(t, "7", msg.OrderID)
	assert.Equal(t, models.OutcomeIgnored, msg.Outcome.Status)
	assert.Equal(t, "unhandled status", msg.Outcome.Reason)
}

func TestPublisher_PublishWebhookIsPersistent(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	require.NoError(t, p.PublishWebhook(context.Background(), []byte(`{"orders": []}`)))

	require.Len(t, ch.published, 1)
	assert.Equal(t, WebhookExchange, ch.published[0].exchange)
	assert.Equal(t, WebhookRoutingKey, ch.published[0].key)
	assert.Equal(t, amqp091.Persistent, ch.published[0].msg.DeliveryMode)
}

func TestPublisher_PropagatesErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newTestPublisher(ch)

	err := p.PublishOutcome(context.Background(), models.CreateOutcomeMessage("r", "7", models.Ignored("x")))
	assert.Error(t, err)
}

type fakeTopology struct {
	exchanges map[string]string
	queues    []string
	bindings  [][3]string
}

func (f *fakeTopology) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	if f.exchanges == nil {
		f.exchanges = map[string]string{}
	}
	f.exchanges[name] = kind
	return nil
}

func (f *fakeTopology) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.queues = append(f.queues, name)
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeTopology) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	f.bindings = append(f.bindings, [3]string{name, key, exchange})
	return nil
}

func TestSetupTopology(t *testing.T) {
	topo := &fakeTopology{}
	require.NoError(t, setupTopology(topo))

	assert.Equal(t, map[string]string{
		WebhookExchange:  "direct",
		OutcomesExchange: "fanout",
	}, topo.exchanges)
	assert.Equal(t, []string{WebhookQueue}, topo.queues)
	assert.Equal(t, [][3]string{{WebhookQueue, WebhookRoutingKey, WebhookExchange}}, topo.bindings)
}
