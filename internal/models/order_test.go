package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusServed, true},
		{StatusPending, StatusPreparing, true},
		{StatusReady, StatusPreparing, false},
		{StatusServed, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusPending, OrderStatus("cooking"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	item := OrderItem{MenuItemID: "m1", Quantity: 1, Price: decimal.RequireFromString("9.99")}

	tests := []struct {
		name      string
		req       *CreateOrderRequest
		wantField string
	}{
		{
			name: "valid request",
			req:  &CreateOrderRequest{CustomerName: "Table 5", TableNumber: 5, Items: []OrderItem{item}, Status: StatusPending},
		},
		{
			name:      "table out of range",
			req:       &CreateOrderRequest{TableNumber: 29, Items: []OrderItem{item}},
			wantField: "table_number",
		},
		{
			name:      "no items",
			req:       &CreateOrderRequest{TableNumber: 3},
			wantField: "items",
		},
		{
			name:      "zero quantity",
			req:       &CreateOrderRequest{TableNumber: 3, Items: []OrderItem{{MenuItemID: "m1", Quantity: 0}}},
			wantField: "items[0].quantity",
		},
		{
			name:      "non-pending status",
			req:       &CreateOrderRequest{TableNumber: 3, Items: []OrderItem{item}, Status: StatusReady},
			wantField: "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(1, 28)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestOrder_ForDepartment(t *testing.T) {
	order := &Order{
		ID: "o1",
		Items: []OrderItem{
			{MenuItemID: "burger", Quantity: 2, Price: decimal.NewFromInt(15), Department: Kitchen},
			{MenuItemID: "cola", Quantity: 1, Price: decimal.NewFromInt(3), Department: Bar},
		},
	}

	bar := order.ForDepartment(Bar)
	if len(bar.Items) != 1 || bar.Items[0].MenuItemID != "cola" {
		t.Fatalf("unexpected bar items: %+v", bar.Items)
	}
	if len(order.Items) != 2 {
		t.Fatalf("original order was modified")
	}

	msg := CreateOrderMessage(order, Kitchen)
	if !msg.Total.Equal(decimal.NewFromInt(30)) {
		t.Errorf("kitchen total = %s", msg.Total)
	}
	if GenerateRoutingKey(Kitchen, "new") != "kitchen.new" {
		t.Errorf("routing key = %s", GenerateRoutingKey(Kitchen, "new"))
	}
}
