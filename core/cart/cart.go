package cart

import (
	"math"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/product"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
)

// labelFallback prefixes the truncated merchant id shown when a merchant was
// never labeled. Kept in the storefront's display language.
const labelFallback = "商家 "

// Line is one cart entry, unique per (ProductID, MerchantID). UnitPrice is in
// cents and is frozen at the price the product had when it was first added.
type Line struct {
	ProductID  string `json:"productId"`
	MerchantID string `json:"merchantId"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unitPrice"`
	ImageURL   string `json:"imageUrl"`
	Quantity   int    `json:"quantity"`
}

// Cart is the pure aggregation state: lines in insertion order, merchant
// display labels, and the promotion set applied per merchant. All methods are
// total functions over this state and do no validation; callers are expected
// to validate at the boundary.
type Cart struct {
	Lines      []Line                      `json:"lines"`
	Labels     map[string]string           `json:"labels"`
	Promotions map[string][]promotion.Rule `json:"promotions"`
}

func New() Cart {
	return Cart{
		Lines:      []Line{},
		Labels:     map[string]string{},
		Promotions: map[string][]promotion.Rule{},
	}
}

// AddItem inserts a line for prd or, when the (product, merchant) pair is
// already present, increments its quantity. The merchant label is refreshed
// on every call.
func (c *Cart) AddItem(prd product.Product, quantity int, merchantName string) {
	c.Labels[prd.MerchantID] = merchantName

	for i := range c.Lines {
		if c.Lines[i].ProductID == prd.ID && c.Lines[i].MerchantID == prd.MerchantID {
			c.Lines[i].Quantity += quantity
			return
		}
	}

	c.Lines = append(c.Lines, Line{
		ProductID:  prd.ID,
		MerchantID: prd.MerchantID,
		Name:       prd.Name,
		UnitPrice:  prd.Price,
		ImageURL:   prd.ImageURL,
		Quantity:   quantity,
	})
}

func (c *Cart) RemoveItem(productID string, merchantID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && c.Lines[i].MerchantID == merchantID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// UpdateQuantity sets the line's quantity to the given absolute value. A
// quantity of zero or less removes the line. Missing lines are left alone.
func (c *Cart) UpdateQuantity(productID string, merchantID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID, merchantID)
		return
	}

	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && c.Lines[i].MerchantID == merchantID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
}

// Clear drops every line. Labels and applied promotions survive, matching the
// storefront's behavior of only flushing items on checkout.
func (c *Cart) Clear() {
	c.Lines = []Line{}
}

func (c *Cart) ClearMerchant(merchantID string) {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.MerchantID != merchantID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

// ApplyPromotions replaces the merchant's applied promotion set wholesale.
func (c *Cart) ApplyPromotions(merchantID string, rules []promotion.Rule) {
	c.Promotions[merchantID] = rules
}

func (c *Cart) RemovePromotions(merchantID string) {
	delete(c.Promotions, merchantID)
}

// Group is one merchant's slice of the cart.
type Group struct {
	MerchantID  string `json:"merchantId"`
	DisplayName string `json:"displayName"`
	Lines       []Line `json:"lines"`
}

// Groups partitions the lines by merchant, ordered by first line insertion.
// Merchants that never got a label fall back to a truncated id placeholder.
func (c Cart) Groups() []Group {
	index := map[string]int{}
	groups := []Group{}

	for _, l := range c.Lines {
		i, ok := index[l.MerchantID]
		if !ok {
			name, ok := c.Labels[l.MerchantID]
			if !ok || name == "" {
				id := l.MerchantID
				if len(id) > 8 {
					id = id[:8]
				}
				name = labelFallback + id
			}

			i = len(groups)
			index[l.MerchantID] = i
			groups = append(groups, Group{MerchantID: l.MerchantID, DisplayName: name})
		}
		groups[i].Lines = append(groups[i].Lines, l)
	}

	return groups
}

func (c Cart) TotalItems() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) TotalPrice() int64 {
	var tot int64
	for _, l := range c.Lines {
		tot += l.UnitPrice * int64(l.Quantity)
	}
	return tot
}

func (c Cart) MerchantTotal(merchantID string) int64 {
	var tot int64
	for _, l := range c.Lines {
		if l.MerchantID == merchantID {
			tot += l.UnitPrice * int64(l.Quantity)
		}
	}
	return tot
}

// Totals is the result of applying a promotion sequence to a merchant
// subtotal. All amounts are in cents.
type Totals struct {
	Original int64 `json:"originalTotal"`
	Discount int64 `json:"discountAmount"`
	Final    int64 `json:"finalTotal"`
}

// MerchantTotalWithDiscount folds the promotion sequence over the merchant's
// subtotal. A non-nil rules argument takes precedence over the applied set;
// the two are never merged. The fold is strictly sequential: each rule's
// discount is clamped to the balance still undiscounted, so stacking order
// matters once the clamp triggers and the cumulative discount can never
// exceed the subtotal.
func (c Cart) MerchantTotalWithDiscount(merchantID string, rules []promotion.Rule) Totals {
	original := c.MerchantTotal(merchantID)

	if rules == nil {
		rules = c.Promotions[merchantID]
	}

	var discount int64
	for _, rule := range rules {
		if rule.ScopeKind == promotion.ScopeMinimumAmount && original < rule.MinAmount {
			continue
		}

		var cur int64
		switch rule.DiscountKind {
		case promotion.Percentage:
			cur = int64(math.Round(float64(original) * rule.DiscountValue / 100))
		case promotion.FixedAmount:
			cur = int64(math.Round(rule.DiscountValue))
		}

		if remaining := original - discount; cur > remaining {
			cur = remaining
		}
		discount += cur
	}

	final := original - discount
	if final < 0 {
		final = 0
	}

	return Totals{Original: original, Discount: discount, Final: final}
}
