package domain

import (
	"errors"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodThawani PaymentMethod = "thawani"
	PaymentMethodPickup  PaymentMethod = "pickup"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodThawani || m == PaymentMethodPickup
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

type OrderSummary struct {
	ItemCount      int   `json:"item_count"`
	Subtotal       Money `json:"subtotal"`
	PointsDiscount Money `json:"points_discount"`
	Shipping       Money `json:"shipping"`
	Total          Money `json:"total"`
}

type Order struct {
	ID            string         `json:"id"`
	CustomerID    int64          `json:"customer_id"`
	CustomerEmail string         `json:"customer_email"`
	CustomerName  string         `json:"customer_name"`
	Items         []CartLineItem `json:"items"`
	Summary       OrderSummary   `json:"summary"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	UsedPoints    bool           `json:"used_points"`
	Status        OrderStatus    `json:"status"`
	Locale        Locale         `json:"locale"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ErrDuplicateOrderID reports that an order number is already taken.
var ErrDuplicateOrderID = errors.New("order id already exists")
