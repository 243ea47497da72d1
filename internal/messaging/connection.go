package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/config"
	"restaurant-system/internal/logger"
)

// Exchange and queue names
const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	KitchenQueue          = "kitchen_queue"
	BarQueue              = "bar_queue"
	NotificationsQueue    = "notifications_queue"
)

// ErrConnectionClosed is returned once Close has been called
var ErrConnectionClosed = errors.New("rabbitmq connection closed")

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool
	logger  *logger.Logger
	url     string

	dial    func() (*amqp091.Connection, *amqp091.Channel, error)
	backoff func(attempt int) time.Duration
}

// NewConnection dials RabbitMQ and declares the topology
func NewConnection(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	c := newConnection(cfg.RabbitMQURL(), log)

	conn, ch, err := c.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	c.conn, c.channel = conn, ch
	return c, nil
}

func newConnection(url string, log *logger.Logger) *Connection {
	c := &Connection{
		logger: log,
		url:    url,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
	c.dial = c.dialAMQP
	return c
}

// connect dials with retries. It leaves c's fields alone, so it runs without c.mu
// and IsClosed or Close never wait on a backoff.
func (c *Connection) connect() (*amqp091.Connection, *amqp091.Channel, error) {
	const maxRetries = 5
	var err error

	for i := 0; i < maxRetries; i++ {
		if c.stopped() {
			return nil, nil, ErrConnectionClosed
		}

		var conn *amqp091.Connection
		var ch *amqp091.Channel
		if conn, ch, err = c.dial(); err == nil {
			return conn, ch, nil
		}

		if i < maxRetries-1 {
			wait := c.backoff(i + 1)
			c.logger.Warn("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", wait),
				"startup", map[string]interface{}{"attempt": i + 1, "error": err.Error()})
			time.Sleep(wait)
		}
	}

	return nil, nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (c *Connection) dialAMQP() (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := setupTopology(ch); err != nil {
		c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", err, nil)
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// setupTopology declares the department routing exchange with one queue per
// department, and the fanout used for status notifications.
func setupTopology(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		OrdersExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", OrdersExchange, err)
	}

	err = ch.ExchangeDeclare(
		NotificationsExchange, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", NotificationsExchange, err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{KitchenQueue, "kitchen.*"},
		{BarQueue, "bar.*"},
	}

	for _, b := range bindings {
		_, err = ch.QueueDeclare(
			b.queue, // name
			true,    // durable
			false,   // delete when unused
			false,   // exclusive
			false,   // no-wait
			amqp091.Table{
				"x-message-ttl": 300000, // 5 minutes
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
		}

		err = ch.QueueBind(b.queue, b.routingKey, OrdersExchange, false, nil)
		if err != nil {
			return fmt.Errorf("failed to bind queue %s with routing key %s: %w", b.queue, b.routingKey, err)
		}
	}

	_, err = ch.QueueDeclare(NotificationsQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare notifications queue: %w", err)
	}

	// routing key is ignored for fanout
	err = ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind notifications queue: %w", err)
	}

	return nil
}

// Channel returns the current channel, reconnecting first when the connection dropped
func (c *Connection) Channel() (*amqp091.Channel, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if c.healthy() {
		ch := c.channel
		c.mu.Unlock()
		return ch, nil
	}
	c.close()
	c.mu.Unlock()

	conn, ch, err := c.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to reconnect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		ch.Close()
		conn.Close()
		return nil, ErrConnectionClosed
	case c.healthy():
		// another caller reconnected first
		ch.Close()
		conn.Close()
		return c.channel, nil
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

func (c *Connection) healthy() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

func (c *Connection) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection and stops any reconnect in progress
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && err != amqp091.ErrClosed {
			return err
		}
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed || c.conn == nil || c.conn.IsClosed()
}
