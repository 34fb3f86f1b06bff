package order

import (
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	Pending       Status = "pending"
	CustomerPaid  Status = "customer_paid"
	Cancelled     Status = "cancelled"
	TimeoutClosed Status = "timeout_closed"
)

// Order is a single-merchant purchase. AutoCloseAt is the payment deadline
// after which the sweeper force-closes a still-pending order.
type Order struct {
	ID           string         `json:"id" db:"order_id"`
	UserID       string         `json:"userId" db:"user_id"`
	MerchantID   string         `json:"merchantId" db:"merchant_id"`
	ProviderID   string         `json:"providerId" db:"provider_id"`
	Status       Status         `json:"status" db:"status"`
	Total        int64          `json:"total" db:"total"`
	PromotionIDs pq.StringArray `json:"promotionIds" db:"promotion_ids"`
	AutoCloseAt  *time.Time     `json:"autoCloseAt" db:"auto_close_at"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

type Item struct {
	OrderID   string    `json:"orderId" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type CheckoutNew struct {
	MerchantID string `json:"merchantId" validate:"required,uuid4"`
}
