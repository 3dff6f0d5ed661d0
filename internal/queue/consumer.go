package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// StartConsumer connects to RabbitMQ, declares queue (durable) and feeds
// every delivery to h until ctx is cancelled. Lost connections are redialed
// with exponential backoff. Messages are acked when h succeeds and rejected
// without requeue when it fails, so a poison message cannot loop.
func StartConsumer(ctx context.Context, url, queue string, prefetch int, h Handler, log *zap.Logger) {
	log = log.With(zap.String("queue", queue))
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff // reset after successful connect

		err = consumeLoop(ctx, conn, queue, prefetch, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, prefetch int, h Handler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			log.Warn("consumer: set QoS failed", zap.Error(err))
		}
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := dispatch(ctx, queue, h, d.Body); err != nil {
				log.Error("consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// dispatch runs h with panic protection and records metrics.
func dispatch(ctx context.Context, queue string, h Handler, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			handled.WithLabelValues(queue, "error").Inc()
		} else {
			handled.WithLabelValues(queue, "ok").Inc()
		}
	}()
	return h(ctx, body)
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
