package product

import "time"

// Product prices are stored in cents.
type Product struct {
	ID          string    `json:"id" db:"product_id"`
	MerchantID  string    `json:"merchantId" db:"merchant_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	Price       int64     `json:"price" db:"price"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type ProductNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Price       int64  `json:"price" validate:"required,gte=0"`
}

type ProductUp struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
}
