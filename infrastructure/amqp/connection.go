// Package amqp connects the chat to the rest of the marketplace over RabbitMQ:
// order events come in, chat events go out on a topic exchange.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const maxDialDelay = 60 * time.Second

type ConnectionOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
}

// DialWithRetry connects with exponential backoff, capped at one minute.
func DialWithRetry(ctx context.Context, log *slog.Logger, opts ConnectionOptions) (*amqp091.Connection, error) {
	var lastErr error
	delay := opts.Delay
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if attempt > 1 {
				log.Info("RabbitMQ connected", "attempt", attempt)
			}
			return conn, nil
		}
		lastErr = err
		log.Warn("RabbitMQ dial failed", "attempt", attempt, "sleep", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, maxDialDelay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", opts.RetryAttempts, lastErr)
}

// DeclareExchange makes sure the durable topic exchange exists.
func DeclareExchange(conn *amqp091.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}
