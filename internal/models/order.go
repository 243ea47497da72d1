package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
)

var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusReady:     3,
	StatusServed:    4,
}

// ParseOrderStatus validates a status coming from a request or a URL.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := statusRank[status]; !ok {
		return "", ValidationError{Field: "status", Message: "status must be one of: pending, confirmed, preparing, ready, served"}
	}
	return status, nil
}

// CanTransitionTo reports whether the order may move from s to next.
// Statuses only move forward; skipping intermediate steps is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Active reports whether the order still needs work from kitchen or bar.
func (s OrderStatus) Active() bool {
	return s != StatusReady && s != StatusServed
}

// OrderItem represents an item in an order
type OrderItem struct {
	MenuItemID string          `json:"menu_item_id" db:"menu_item_id"`
	Name       string          `json:"menu_item_name,omitempty" db:"name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	ItemType   ItemType        `json:"item_type,omitempty" db:"item_type"`
	Department Department      `json:"department,omitempty" db:"department"`
}

// Subtotal is unit price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a persisted table order
type Order struct {
	ID           string          `json:"id" db:"id"`
	TableNumber  int             `json:"table_number" db:"table_number"`
	CustomerName string          `json:"customer_name" db:"customer_name"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total" db:"total_cents"`
	Status       OrderStatus     `json:"status" db:"status"`
	Notes        string          `json:"notes" db:"notes"`
	CreatedBy    string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// HasDepartment reports whether any item of the order is fulfilled by dept.
func (o *Order) HasDepartment(dept Department) bool {
	for _, item := range o.Items {
		if item.Department == dept {
			return true
		}
	}
	return false
}

// ForDepartment returns a copy of the order restricted to the items of dept.
func (o *Order) ForDepartment(dept Department) Order {
	filtered := *o
	filtered.Items = nil
	for _, item := range o.Items {
		if item.Department == dept {
			filtered.Items = append(filtered.Items, item)
		}
	}
	return filtered
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	CustomerName string          `json:"customer_name"`
	TableNumber  int             `json:"table_number"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	Notes        string          `json:"notes"`
}

// CalculateTotal sums price * quantity over all items.
func (req *CreateOrderRequest) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Validate checks the request against the venue's table range.
func (req *CreateOrderRequest) Validate(minTable, maxTable int) error {
	if req.TableNumber < minTable || req.TableNumber > maxTable {
		return ValidationError{
			Field:   "table_number",
			Message: fmt.Sprintf("table number must be between %d and %d", minTable, maxTable),
		}
	}
	if len(req.CustomerName) > 100 {
		return ValidationError{Field: "customer_name", Message: "customer name must be less than 100 characters"}
	}
	if req.Status != "" && req.Status != StatusPending {
		return ValidationError{Field: "status", Message: "new orders must be pending"}
	}
	if len(req.Items) == 0 {
		return ValidationError{Field: "items", Message: "add at least one item"}
	}
	for i, item := range req.Items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item OrderItem, index int) error {
	if item.MenuItemID == "" {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].menu_item_id", index),
			Message: "menu item id is required",
		}
	}
	if item.Quantity < 1 {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].quantity", index),
			Message: "item quantity must be greater than 0",
		}
	}
	if item.Price.IsNegative() {
		return ValidationError{
			Field:   fmt.Sprintf("items[%d].price", index),
			Message: "item price must not be negative",
		}
	}
	return nil
}

// UpdateStatusRequest is the body of PUT /orders/{id}
type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	Status    OrderStatus `json:"status" db:"status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time   `json:"timestamp" db:"changed_at"`
	Notes     *string     `json:"notes,omitempty" db:"notes"`
}

// DashboardStats is returned by GET /dashboard/stats
type DashboardStats struct {
	TotalOrders     int `json:"total_orders"`
	PendingOrders   int `json:"pending_orders"`
	PreparingOrders int `json:"preparing_orders"`
	ReadyOrders     int `json:"ready_orders"`
}

// TablesResponse is returned by GET /tables
type TablesResponse struct {
	Tables []int `json:"tables"`
}
