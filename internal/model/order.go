// internal/model/order.go
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents how an order leaves the kitchen
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
)

// OrderPriority represents kitchen urgency
type OrderPriority string

const (
	PriorityNormal OrderPriority = "normal"
	PriorityUrgent OrderPriority = "urgent"
	PriorityRush   OrderPriority = "rush"
)

// IsElevated reports whether the priority gets its own banner on the ticket
func (p OrderPriority) IsElevated() bool {
	return p == PriorityUrgent || p == PriorityRush
}

// ErrInvalidOrder matches every order validation failure
var ErrInvalidOrder = errors.New("invalid order")

// OrderItem is one line of a kitchen order
type OrderItem struct {
	Name      string          `json:"name" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
	Notes     string          `json:"notes,omitempty"`
	Category  string          `json:"category,omitempty"`
	Modifiers []string        `json:"modifiers,omitempty"`
}

// KitchenOrder is the order record handed over by the order-management system
type KitchenOrder struct {
	ID                  string        `json:"id"`
	OrderNumber         string        `json:"order_number" binding:"required"`
	Timestamp           time.Time     `json:"timestamp"`
	CustomerName        string        `json:"customer_name,omitempty"`
	TableNumber         string        `json:"table_number,omitempty"`
	OrderType           OrderType     `json:"order_type"`
	Items               []OrderItem   `json:"items" binding:"required,min=1,dive"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	Priority            OrderPriority `json:"priority,omitempty"`
	ServerName          string        `json:"server_name,omitempty"`
}

// Validate checks the order is printable
func (o *KitchenOrder) Validate() error {
	if strings.TrimSpace(o.OrderNumber) == "" {
		return fmt.Errorf("%w: order number is required", ErrInvalidOrder)
	}

	switch o.OrderType {
	case OrderTypeDineIn, OrderTypeTakeout, OrderTypeDelivery:
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, o.OrderType)
	}

	switch o.Priority {
	case "", PriorityNormal, PriorityUrgent, PriorityRush:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidOrder, o.Priority)
	}

	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidOrder, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has quantity %d", ErrInvalidOrder, item.Name, item.Quantity)
		}
	}

	return nil
}

// Total returns the order value
func (o *KitchenOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
