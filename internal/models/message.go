package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderMessage is published once per department when an order is created
type OrderMessage struct {
	OrderID      string          `json:"order_id"`
	TableNumber  int             `json:"table_number"`
	CustomerName string          `json:"customer_name"`
	Department   Department      `json:"department"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	OrderID     string    `json:"order_id"`
	TableNumber int       `json:"table_number"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ChangedBy   string    `json:"changed_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// CreateOrderMessage builds the department-specific message for a stored order.
func CreateOrderMessage(order *Order, dept Department) *OrderMessage {
	scoped := order.ForDepartment(dept)
	total := decimal.Zero
	for _, item := range scoped.Items {
		total = total.Add(item.Subtotal())
	}

	return &OrderMessage{
		OrderID:      order.ID,
		TableNumber:  order.TableNumber,
		CustomerName: order.CustomerName,
		Department:   dept,
		Items:        scoped.Items,
		Total:        total,
		Notes:        order.Notes,
		CreatedAt:    order.CreatedAt,
	}
}

// CreateStatusUpdateMessage creates a StatusUpdateMessage for order status changes
func CreateStatusUpdateMessage(order *Order, oldStatus OrderStatus, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:     order.ID,
		TableNumber: order.TableNumber,
		OldStatus:   string(oldStatus),
		NewStatus:   string(order.Status),
		ChangedBy:   changedBy,
		Timestamp:   time.Now().UTC(),
	}
}

// GenerateRoutingKey generates a routing key for department order messages
func GenerateRoutingKey(dept Department, event string) string {
	return fmt.Sprintf("%s.%s", dept, event)
}
