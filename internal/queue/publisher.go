package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/routemate/bus-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// Publisher delivers booking change events to RabbitMQ. Delivery is
// fire-and-forget from the booking core's perspective: a failed publish is
// logged and returned, and the caller is free to ignore it.
type Publisher struct {
	cfg    config.NotifierConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *logrus.Logger
}

// NewPublisher connects to the broker and declares the event queues.
// Queues are durable so messages survive broker restarts.
func NewPublisher(cfg config.NotifierConfig, logger *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, queue := range []string{cfg.StatusQueue, cfg.PaymentQueue} {
		if _, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	return &Publisher{cfg: cfg, conn: conn, ch: ch, logger: logger}, nil
}

// PublishStatusChanged publishes a booking status transition event
func (p *Publisher) PublishStatusChanged(ctx context.Context, event BookingChangeEvent) error {
	return p.publish(ctx, p.cfg.StatusQueue, event)
}

// PublishPaymentChanged publishes a payment status transition event
func (p *Publisher) PublishPaymentChanged(ctx context.Context, event BookingChangeEvent) error {
	return p.publish(ctx, p.cfg.PaymentQueue, event)
}

func (p *Publisher) publish(ctx context.Context, queue string, event BookingChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal booking change event")
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.WithError(err).WithField("queue", queue).Error("Failed to publish booking change event")
		return err
	}

	return nil
}

// Close releases the channel and connection
func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
