package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/logger"
)

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

// Subscriber is implemented by the RabbitMQ and Kafka consumers
type Subscriber interface {
	StartConsuming(ctx context.Context, handler MessageHandler) error
	Close() error
}

// amqpChannel is the part of *amqp091.Channel a consumer drives
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	open        func() (amqpChannel, error)
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
	watch       *watchBinding
}

// watchBinding describes a private queue declared per subscription
type watchBinding struct {
	exchange   string
	routingKey string
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		open:        channelOf(conn),
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// NewWatchConsumer consumes from a private auto-deleted queue bound to exchange,
// so every terminal sees every matching message instead of sharing a work queue.
func NewWatchConsumer(conn *Connection, log *logger.Logger, exchange, routingKey, consumerTag string) *Consumer {
	return &Consumer{
		conn:        conn,
		open:        channelOf(conn),
		logger:      log,
		consumerTag: consumerTag,
		prefetch:    10,
		watch:       &watchBinding{exchange: exchange, routingKey: routingKey},
	}
}

func channelOf(conn *Connection) func() (amqpChannel, error) {
	return func() (amqpChannel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// StartConsuming blocks until ctx is cancelled, re-subscribing when the channel drops
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return nil
		}
		if err != nil {
			return err
		}
		c.logger.Warn("consumer_channel_closed", "Message channel closed, reconnecting", "",
			map[string]interface{}{"queue": c.queueName})
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	ch, err := c.open()
	if err != nil {
		return err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if c.watch != nil {
		if err := c.declareWatchQueue(ch); err != nil {
			return err
		}
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

func (c *Consumer) declareWatchQueue(ch amqpChannel) error {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare watch queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.watch.routingKey, c.watch.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind watch queue to %s: %w", c.watch.exchange, err)
	}
	c.queueName = q.Name
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	start := time.Now()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := handler(processingCtx, delivery.Body)
	fields := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  delivery.RoutingKey,
		"duration_ms":  time.Since(start).Milliseconds(),
		"delivery_tag": delivery.DeliveryTag,
	}

	if err != nil {
		requeue := !delivery.Redelivered
		fields["requeue"] = requeue
		c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
		// a message that fails twice is dropped rather than looping forever
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
		return
	}

	c.logger.Debug("message_processed", "Successfully processed message", "", fields)
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, nil)
	}
}

// ParseMessage parses a JSON message into the provided struct
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	return nil
}

// Close stops consuming messages
func (c *Consumer) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	if ch, err := c.conn.Channel(); err == nil {
		if err := ch.Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
	}
	return c.conn.Close()
}
