package promotion

import "time"

type Kind string

const (
	Percentage  Kind = "percentage"
	FixedAmount Kind = "fixed_amount"
)

type Scope string

const (
	ScopeGeneral       Scope = "general"
	ScopeProduct       Scope = "product_specific"
	ScopeCategory      Scope = "category_specific"
	ScopeMinimumAmount Scope = "minimum_amount"
)

// Rule is a discount a merchant attaches to its cart subtotal. DiscountValue
// is a percentage for Percentage rules and an amount in cents for FixedAmount
// rules. MinAmount gates ScopeMinimumAmount rules; UsageLimit and UsageCount
// are bookkeeping only and are not enforced during cart math.
type Rule struct {
	ID            string    `json:"id" db:"promotion_id"`
	MerchantID    string    `json:"merchantId" db:"merchant_id"`
	Title         string    `json:"title" db:"title"`
	DiscountKind  Kind      `json:"discountKind" db:"discount_kind"`
	DiscountValue float64   `json:"discountValue" db:"discount_value"`
	ScopeKind     Scope     `json:"scopeKind" db:"scope_kind"`
	MinAmount     int64     `json:"minAmount" db:"min_amount"`
	UsageLimit    int       `json:"usageLimit" db:"usage_limit"`
	UsageCount    int       `json:"usageCount" db:"usage_count"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

type RuleNew struct {
	Title         string  `json:"title" validate:"required"`
	DiscountKind  Kind    `json:"discountKind" validate:"required,oneof=percentage fixed_amount"`
	DiscountValue float64 `json:"discountValue" validate:"required,gt=0"`
	ScopeKind     Scope   `json:"scopeKind" validate:"omitempty,oneof=general product_specific category_specific minimum_amount"`
	MinAmount     int64   `json:"minAmount" validate:"omitempty,gte=0"`
	UsageLimit    int     `json:"usageLimit" validate:"omitempty,gte=0"`
}
