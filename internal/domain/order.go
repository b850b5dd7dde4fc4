package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusShipped   OrderStatus = "shipped"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusShipped:
		return true
	}
	return false
}

// Order records a purchase of a single product. Identity is immutable;
// only Status moves after creation.
type Order struct {
	ID             string
	UserID         int64
	ProductID      int64
	Quantity       int
	TotalPrice     float64
	Status         OrderStatus
	PaymentRef     string
	IdempotencyKey string
	CreatedAt      time.Time
}

func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("order id is required")
	}
	if o.UserID <= 0 {
		return errors.New("order user id is required")
	}
	if o.ProductID <= 0 {
		return errors.New("order product id is required")
	}
	if o.Quantity <= 0 {
		return errors.New("order quantity must be positive")
	}
	if o.TotalPrice < 0 {
		return errors.New("order total price must be >= 0")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("unsupported order status: %q", o.Status)
	}
	return nil
}

// OrderEvent is one entry in an order's append-only status history.
type OrderEvent struct {
	ID         int64
	OrderID    string
	Status     OrderStatus
	Note       string
	OccurredAt time.Time
}

func (e OrderEvent) Validate() error {
	if strings.TrimSpace(e.OrderID) == "" {
		return errors.New("order event order id is required")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("unsupported order status: %q", e.Status)
	}
	return nil
}
