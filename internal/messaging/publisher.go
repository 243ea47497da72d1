package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

// EventPublisher announces new department orders and status changes.
type EventPublisher interface {
	PublishOrder(ctx context.Context, msg *models.OrderMessage) error
	PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error
	Close() error
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishOrder routes the order to its department queue as "<department>.new"
func (p *Publisher) PublishOrder(ctx context.Context, msg *models.OrderMessage) error {
	key := models.GenerateRoutingKey(msg.Department, "new")
	return p.publishMessage(ctx, OrdersExchange, key, msg, true)
}

// PublishStatusUpdate publishes a status update message to the notifications fanout exchange
func (p *Publisher) PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error {
	return p.publishMessage(ctx, NotificationsExchange, "", msg, false)
}

func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey string, message interface{}, persistent bool) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: deliveryMode,
			Timestamp:    time.Now(),
		},
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

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.conn.Close()
}

// NopPublisher drops every event; used when events.driver is "none".
type NopPublisher struct{}

func (NopPublisher) PublishOrder(context.Context, *models.OrderMessage) error { return nil }

func (NopPublisher) PublishStatusUpdate(context.Context, *models.StatusUpdateMessage) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
