package cart

import (
	"testing"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/product"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/google/go-cmp/cmp"
)

func testProduct(id, merchantID string, price int64) product.Product {
	return product.Product{
		ID:         id,
		MerchantID: merchantID,
		Name:       "product-" + id,
		ImageURL:   "https://img.test/" + id,
		Price:      price,
	}
}

func TestAddItemMergesSamePair(t *testing.T) {
	c := New()
	p := testProduct("p1", "m1", 500)

	c.AddItem(p, 2, "小面馆")
	c.AddItem(p, 3, "小面馆")

	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
	if got := c.Lines[0].Quantity; got != 5 {
		t.Fatalf("expected merged quantity 5, got %d", got)
	}
	if got := c.TotalItems(); got != 5 {
		t.Fatalf("expected 5 total items, got %d", got)
	}
}

func TestUpdateQuantityToZeroRemoves(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 500), 2, "小面馆")

	c.UpdateQuantity("p1", "m1", 0)

	if len(c.Lines) != 0 {
		t.Fatalf("expected line removed, still have %d lines", len(c.Lines))
	}
	if groups := c.Groups(); len(groups) != 0 {
		t.Fatalf("expected no merchant groups, got %d", len(groups))
	}
}

func TestUpdateQuantityIsAbsolute(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 500), 2, "小面馆")

	c.UpdateQuantity("p1", "m1", 7)

	if got := c.Lines[0].Quantity; got != 7 {
		t.Fatalf("expected quantity set to 7, got %d", got)
	}

	// Missing pairs are left alone.
	c.UpdateQuantity("ghost", "m1", 3)
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 7 {
		t.Fatal("updating a missing line must not alter the cart")
	}
}

func TestDiscountClamping(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 100), 1, "小面馆")

	rules := []promotion.Rule{
		{ID: "d1", DiscountKind: promotion.FixedAmount, DiscountValue: 60},
		{ID: "d2", DiscountKind: promotion.FixedAmount, DiscountValue: 60},
	}

	tot := c.MerchantTotalWithDiscount("m1", rules)

	want := Totals{Original: 100, Discount: 100, Final: 0}
	if diff := cmp.Diff(want, tot); diff != "" {
		t.Fatalf("clamped totals mismatch (-want +got):\n%s", diff)
	}
}

func TestMinimumAmountGate(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 100), 1, "小面馆")

	rules := []promotion.Rule{{
		ID:            "d1",
		DiscountKind:  promotion.FixedAmount,
		DiscountValue: 30,
		ScopeKind:     promotion.ScopeMinimumAmount,
		MinAmount:     200,
	}}

	tot := c.MerchantTotalWithDiscount("m1", rules)

	want := Totals{Original: 100, Discount: 0, Final: 100}
	if diff := cmp.Diff(want, tot); diff != "" {
		t.Fatalf("gated totals mismatch (-want +got):\n%s", diff)
	}
}

func TestPercentageDiscount(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 50), 1, "小面馆")

	rules := []promotion.Rule{{
		ID:            "d1",
		DiscountKind:  promotion.Percentage,
		DiscountValue: 20,
	}}

	tot := c.MerchantTotalWithDiscount("m1", rules)

	want := Totals{Original: 50, Discount: 10, Final: 40}
	if diff := cmp.Diff(want, tot); diff != "" {
		t.Fatalf("percentage totals mismatch (-want +got):\n%s", diff)
	}
}

func TestStackedDiscounts(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 100), 1, "小面馆")

	fixed := promotion.Rule{ID: "f", DiscountKind: promotion.FixedAmount, DiscountValue: 90}
	percent := promotion.Rule{ID: "p", DiscountKind: promotion.Percentage, DiscountValue: 50}
	small := promotion.Rule{ID: "s", DiscountKind: promotion.FixedAmount, DiscountValue: 30}

	// Percentage rules always discount against the original subtotal; only
	// the clamp looks at the balance still undiscounted.
	got := c.MerchantTotalWithDiscount("m1", []promotion.Rule{fixed, percent})
	if got.Discount != 100 || got.Final != 0 {
		t.Fatalf("fixed-then-percent: got %+v", got)
	}

	got = c.MerchantTotalWithDiscount("m1", []promotion.Rule{small, percent})
	if got.Discount != 80 || got.Final != 20 {
		t.Fatalf("small-then-percent: got %+v", got)
	}
}

func TestAppliedPromotionsAndPrecedence(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 100), 1, "小面馆")

	applied := []promotion.Rule{{ID: "a", DiscountKind: promotion.FixedAmount, DiscountValue: 25}}
	c.ApplyPromotions("m1", applied)

	if got := c.MerchantTotalWithDiscount("m1", nil); got.Discount != 25 {
		t.Fatalf("applied set should discount 25, got %d", got.Discount)
	}

	// An explicit argument wins over the applied set and is not merged.
	arg := []promotion.Rule{{ID: "b", DiscountKind: promotion.FixedAmount, DiscountValue: 10}}
	if got := c.MerchantTotalWithDiscount("m1", arg); got.Discount != 10 {
		t.Fatalf("explicit rules should discount 10, got %d", got.Discount)
	}

	// An explicit empty set means "no promotions", not "fall back".
	if got := c.MerchantTotalWithDiscount("m1", []promotion.Rule{}); got.Discount != 0 {
		t.Fatalf("explicit empty set should discount 0, got %d", got.Discount)
	}

	// Replacing discards the previous set wholesale.
	c.ApplyPromotions("m1", arg)
	if got := c.MerchantTotalWithDiscount("m1", nil); got.Discount != 10 {
		t.Fatalf("replaced set should discount 10, got %d", got.Discount)
	}

	c.RemovePromotions("m1")
	if got := c.MerchantTotalWithDiscount("m1", nil); got.Discount != 0 {
		t.Fatalf("removed set should discount 0, got %d", got.Discount)
	}
}

func TestCrossMerchantIndependence(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "mA", 300), 2, "A 家")

	before := c.MerchantTotal("mA")

	c.AddItem(testProduct("p2", "mB", 999), 4, "B 家")
	if got := c.MerchantTotal("mA"); got != before {
		t.Fatalf("merchant A total changed from %d to %d after adding B items", before, got)
	}

	c.ClearMerchant("mB")
	if got := c.MerchantTotal("mA"); got != before {
		t.Fatalf("merchant A total changed from %d to %d after clearing B", before, got)
	}
	if got := c.MerchantTotal("mB"); got != 0 {
		t.Fatalf("merchant B total should be 0 after clear, got %d", got)
	}
}

func TestGroupsOrderAndLabelFallback(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "merchant-bbbb", 100), 1, "")
	c.AddItem(testProduct("p2", "merchant-aaaa", 100), 1, "早餐铺")
	c.AddItem(testProduct("p3", "merchant-bbbb", 100), 1, "")

	groups := c.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// Grouping follows line insertion order.
	if groups[0].MerchantID != "merchant-bbbb" || groups[1].MerchantID != "merchant-aaaa" {
		t.Fatalf("unexpected group order: %s, %s", groups[0].MerchantID, groups[1].MerchantID)
	}

	if want := "商家 merchant"; groups[0].DisplayName != want {
		t.Fatalf("expected fallback label %q, got %q", want, groups[0].DisplayName)
	}
	if groups[1].DisplayName != "早餐铺" {
		t.Fatalf("expected recorded label, got %q", groups[1].DisplayName)
	}
	if len(groups[0].Lines) != 2 {
		t.Fatalf("expected 2 lines for first merchant, got %d", len(groups[0].Lines))
	}
}

func TestClearKeepsLabelsAndPromotions(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 100), 1, "小面馆")
	c.ApplyPromotions("m1", []promotion.Rule{{ID: "a", DiscountKind: promotion.FixedAmount, DiscountValue: 10}})

	c.Clear()

	if len(c.Lines) != 0 {
		t.Fatalf("expected no lines after clear, got %d", len(c.Lines))
	}
	if _, ok := c.Labels["m1"]; !ok {
		t.Fatal("clear should keep merchant labels")
	}
	if _, ok := c.Promotions["m1"]; !ok {
		t.Fatal("clear should keep applied promotions")
	}
}

func TestViewTotals(t *testing.T) {
	c := New()
	c.AddItem(testProduct("p1", "m1", 250), 2, "小面馆")
	c.AddItem(testProduct("p2", "m2", 100), 1, "早餐铺")
	c.ApplyPromotions("m1", []promotion.Rule{{ID: "a", DiscountKind: promotion.Percentage, DiscountValue: 10}})

	v := NewView(c)

	if v.TotalItems != 3 {
		t.Fatalf("expected 3 total items, got %d", v.TotalItems)
	}
	if v.TotalPrice != 600 {
		t.Fatalf("expected overall price 600, got %d", v.TotalPrice)
	}

	want := []Totals{
		{Original: 500, Discount: 50, Final: 450},
		{Original: 100, Discount: 0, Final: 100},
	}
	for i, g := range v.Merchants {
		if diff := cmp.Diff(want[i], g.Totals); diff != "" {
			t.Fatalf("merchant %d totals mismatch (-want +got):\n%s", i, diff)
		}
	}
}
