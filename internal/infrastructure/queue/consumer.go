package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/ports"
)

const (
	consumerPrefetch = 50
	maxBackoff       = 30 * time.Second
)

// Consumer reads mail jobs from RabbitMQ and hands them to a local
// publisher, normally the Dispatcher.
type Consumer struct {
	url    string
	queue  string
	target ports.MailPublisher
	log    zerolog.Logger
}

func NewConsumer(url string, target ports.MailPublisher, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, queue: MailQueue, target: target, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("mail consumer: dial failed")
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Msg("mail consumer: loop ended, reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("mail consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.log.Info().Str("queue", c.queue).Msg("mail consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks a delivery once the target accepted it. Undecodable bodies are
// rejected for good; a full local queue sends the message back to the broker.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var mail domain.Mail
	if err := json.Unmarshal(d.Body, &mail); err != nil || mail.To == "" {
		c.log.Error().Err(err).Msg("mail consumer: discarding malformed job")
		_ = d.Nack(false, false)
		return
	}
	if err := c.target.Publish(ctx, mail); err != nil {
		c.log.Warn().Err(err).Msg("mail consumer: requeueing job")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
