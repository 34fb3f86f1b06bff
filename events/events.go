package events

import "time"

const (
	OrderCreatedQueue  = "order.created"
	OrderPaidQueue     = "order.paid"
	OrderTimedOutQueue = "order.timed_out"
)

type OrderCreated struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	MerchantID string    `json:"merchantId"`
	Total      int64     `json:"total"`
	Timestamp  time.Time `json:"timestamp"`
}

type OrderPaid struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	MerchantID string    `json:"merchantId"`
	Timestamp  time.Time `json:"timestamp"`
}

// OrderTimedOut announces one sweep's worth of force-closed orders.
type OrderTimedOut struct {
	EventType string    `json:"eventType"`
	OrderIDs  []string  `json:"orderIds"`
	Timestamp time.Time `json:"timestamp"`
}
