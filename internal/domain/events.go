package domain

import "time"

type OrderPlacedEvent struct {
	EventID       string         `json:"event_id"`
	OrderID       string         `json:"order_id"`
	CustomerID    int64          `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	Items         []CartLineItem `json:"items"`
	Total         Money          `json:"total"`
	PaymentMethod PaymentMethod  `json:"payment_method"`
	Locale        Locale         `json:"locale"`
	Timestamp     time.Time      `json:"timestamp"`
}
