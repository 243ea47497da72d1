package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"restaurant-system/internal/config"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

const departmentHeader = "department"

// KafkaPublisher writes order messages to the orders topic keyed by order id,
// and status updates to the notification topic.
type KafkaPublisher struct {
	orders        *kafka.Writer
	notifications *kafka.Writer
	logger        *logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		orders:        newWriter(cfg.Brokers, cfg.OrdersTopic),
		notifications: newWriter(cfg.Brokers, cfg.NotificationTopic),
		logger:        log,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) PublishOrder(ctx context.Context, msg *models.OrderMessage) error {
	return p.write(ctx, p.orders, msg.OrderID, msg, kafka.Header{Key: departmentHeader, Value: []byte(msg.Department)})
}

func (p *KafkaPublisher) PublishStatusUpdate(ctx context.Context, msg *models.StatusUpdateMessage) error {
	return p.write(ctx, p.notifications, msg.OrderID, msg)
}

func (p *KafkaPublisher) write(ctx context.Context, w *kafka.Writer, key string, value any, headers ...kafka.Header) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	err = w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Time:    time.Now(),
		Headers: headers,
	})
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to topic %s", w.Topic),
			"", err, map[string]interface{}{"topic": w.Topic, "key": key})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to topic %s", w.Topic),
		"", map[string]interface{}{"topic": w.Topic, "key": key, "message_size": len(data)})
	return nil
}

func (p *KafkaPublisher) Close() error {
	errOrders := p.orders.Close()
	errNotifications := p.notifications.Close()
	if errOrders != nil {
		return errOrders
	}
	return errNotifications
}

// kafkaAttempts is how often a message is handed to the handler before it is dropped
const kafkaAttempts = 2

// kafkaReader is the part of *kafka.Reader the consumer uses
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads one topic as part of a consumer group. A message whose
// handler fails twice is logged and committed, the same rule the RabbitMQ
// consumer applies with nack-once.
type KafkaConsumer struct {
	reader kafkaReader
	topic  string
	logger *logger.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, log *logger.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &KafkaConsumer{reader: reader, topic: topic, logger: log}
}

func (c *KafkaConsumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from topic %s", c.topic),
		"", map[string]interface{}{"topic": c.topic})

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		fields := map[string]interface{}{
			"topic":     c.topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}

		if err := c.handle(ctx, msg, handler, fields); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// offsets are cumulative, so a later commit would skip this one anyway
			c.logger.Warn("message_dropped", "Dropping message after repeated failures", "", fields)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler, fields map[string]interface{}) error {
	var err error
	for attempt := 1; attempt <= kafkaAttempts; attempt++ {
		if err = handler(ctx, msg.Value); err == nil {
			c.logger.Debug("message_processed", "Successfully processed message", "", fields)
			return nil
		}
		fields["attempt"] = attempt
		c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
