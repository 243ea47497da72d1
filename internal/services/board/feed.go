package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
)

const (
	feedRetryDelay    = 5 * time.Second
	feedMaxRetryDelay = time.Minute
)

// Feed listens to broker events and nudges the board so new tickets show up
// without waiting for the next poll.
type Feed struct {
	board      *Board
	subscriber messaging.Subscriber
	logger     *logger.Logger
	retryDelay time.Duration
}

func NewFeed(board *Board, subscriber messaging.Subscriber, log *logger.Logger) *Feed {
	return &Feed{board: board, subscriber: subscriber, logger: log, retryDelay: feedRetryDelay}
}

// Start blocks until ctx is cancelled, then closes the subscriber. A broken
// subscription is retried with backoff and never ends the board; polling keeps
// the list current in the meantime.
func (f *Feed) Start(ctx context.Context) error {
	defer f.subscriber.Close()

	f.logger.Info("feed_started", fmt.Sprintf("Listening for %s events", f.board.View()), "", map[string]interface{}{
		"view": f.board.View(),
	})

	delay := f.retryDelay
	for {
		err := f.subscriber.StartConsuming(ctx, f.handleMessage)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("subscription ended")
		}

		f.logger.Warn("feed_failed", fmt.Sprintf("Event feed failed, retrying in %v", delay), "", map[string]interface{}{
			"view":  f.board.View(),
			"error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, feedMaxRetryDelay)
	}
}

// event holds the fields shared by order and status messages
type event struct {
	OrderID     string            `json:"order_id"`
	TableNumber int               `json:"table_number"`
	Department  models.Department `json:"department"`
	NewStatus   string            `json:"new_status"`
}

func (f *Feed) handleMessage(ctx context.Context, body []byte) error {
	var ev event
	if err := messaging.ParseMessage(body, &ev); err != nil {
		f.logger.Error("message_parsing_failed", "Failed to parse event", "", err, nil)
		return err
	}

	if ev.Department != "" && f.board.dept != "" && ev.Department != f.board.dept {
		f.logger.Debug("event_skipped", "Event belongs to another department", "", map[string]interface{}{
			"order_id":   ev.OrderID,
			"department": ev.Department,
		})
		return nil
	}

	f.logger.Debug("event_received", "Refreshing board after event", "", map[string]interface{}{
		"order_id":     ev.OrderID,
		"table_number": ev.TableNumber,
		"new_status":   ev.NewStatus,
	})
	f.board.Nudge()
	return nil
}
