package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes order lifecycle events onto RabbitMQ queues. A nil
// Publisher is valid and drops every event, so callers never have to branch
// on whether eventing is configured.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	// Declare queues up front so publishing never fails on missing infra.
	for _, q := range []string{OrderCreatedQueue, OrderPaidQueue, OrderTimedOutQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declaring queue %s: %w", q, err)
		}
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev OrderCreated) error {
	if p == nil {
		return nil
	}
	ev.EventType = "OrderCreated"
	ev.Timestamp = time.Now().UTC()
	return p.publishJSON(ctx, OrderCreatedQueue, ev)
}

func (p *Publisher) PublishOrderPaid(ctx context.Context, ev OrderPaid) error {
	if p == nil {
		return nil
	}
	ev.EventType = "OrderPaid"
	ev.Timestamp = time.Now().UTC()
	return p.publishJSON(ctx, OrderPaidQueue, ev)
}

func (p *Publisher) PublishOrderTimedOut(ctx context.Context, ev OrderTimedOut) error {
	if p == nil {
		return nil
	}
	ev.EventType = "OrderTimedOut"
	ev.Timestamp = time.Now().UTC()
	return p.publishJSON(ctx, OrderTimedOutQueue, ev)
}

func (p *Publisher) publishJSON(ctx context.Context, queue string, ev any) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event for %s: %w", queue, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
