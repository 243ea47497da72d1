package notification

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
)

// Subscriber prints status update notifications as they arrive
type Subscriber struct {
	consumer messaging.Subscriber
	logger   *logger.Logger
	out      io.Writer
	printer  *message.Printer
}

// NewSubscriber creates a new notification subscriber writing to out
func NewSubscriber(consumer messaging.Subscriber, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      out,
		printer:  message.NewPrinter(language.English),
	}
}

// Start consumes notifications until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.HandleNotification)

	s.logger.Info("graceful_shutdown", "Stopping notification subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	if err != nil {
		return fmt.Errorf("notification consumer failed: %w", err)
	}
	return nil
}

// HandleNotification parses one status update and prints it
func (s *Subscriber) HandleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var update models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &update); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return err
	}

	line := s.Format(&update)
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Notification displayed", requestID, map[string]interface{}{
		"order_id":     update.OrderID,
		"table_number": update.TableNumber,
		"old_status":   update.OldStatus,
		"new_status":   update.NewStatus,
		"changed_by":   update.ChangedBy,
	})
	return nil
}

// Format renders a human-readable notification line
func (s *Subscriber) Format(u *models.StatusUpdateMessage) string {
	ts := u.Timestamp.Local().Format("15:04:05")
	short := shortID(u.OrderID)

	switch models.OrderStatus(u.NewStatus) {
	case models.StatusConfirmed:
		return s.printer.Sprintf("📋 [%s] Table %d: order %s confirmed by %s.", ts, u.TableNumber, short, u.ChangedBy)
	case models.StatusPreparing:
		return s.printer.Sprintf("🍳 [%s] Table %d: order %s is being prepared by %s.", ts, u.TableNumber, short, u.ChangedBy)
	case models.StatusReady:
		return s.printer.Sprintf("✅ [%s] Table %d: order %s is ready to serve!", ts, u.TableNumber, short)
	case models.StatusServed:
		return s.printer.Sprintf("🎉 [%s] Table %d: order %s has been served.", ts, u.TableNumber, short)
	default:
		return s.printer.Sprintf("📋 [%s] Table %d: order %s changed from '%s' to '%s' by %s.",
			ts, u.TableNumber, short, u.OldStatus, u.NewStatus, u.ChangedBy)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
