package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/cart"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/product"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/user"
)

type cartTest struct {
	*TestEnv
}

func TestCart(t *testing.T) {
	env, err := NewTestEnv(t, "cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}

	rice := rt.createProductOK(t, "rice bowl", 1200)
	soup := rt.createProductOK(t, "hot soup", 800)
	promo := rt.createPromotionOK(t, promotion.RuleNew{
		Title:         "10 percent off",
		DiscountKind:  promotion.Percentage,
		DiscountValue: 10,
	})

	rt.Login(t, customerEmail, customerPass)
	defer rt.Logout(t)

	rt.addItemOK(t, rice.ID, 2)
	rt.addItemOK(t, soup.ID, 1)

	view := rt.showCartOK(t)
	if view.TotalItems != 3 {
		t.Fatalf("expected 3 items in cart, got %d", view.TotalItems)
	}
	if view.TotalPrice != 2*1200+800 {
		t.Fatalf("expected total %d, got %d", 2*1200+800, view.TotalPrice)
	}
	if len(view.Merchants) != 1 {
		t.Fatalf("expected 1 merchant group, got %d", len(view.Merchants))
	}
	if view.Merchants[0].DisplayName != "第一食堂" {
		t.Fatalf("expected merchant label to be kept, got %q", view.Merchants[0].DisplayName)
	}

	// Adding the same product again merges into the existing line.
	rt.addItemOK(t, rice.ID, 1)
	view = rt.showCartOK(t)
	if len(view.Merchants[0].Lines) != 2 {
		t.Fatalf("expected 2 lines after merge, got %d", len(view.Merchants[0].Lines))
	}
	if view.TotalItems != 4 {
		t.Fatalf("expected 4 items after merge, got %d", view.TotalItems)
	}

	// Quantity updates are absolute and zero removes the line.
	rt.updateItemOK(t, rice.ID, 1)
	rt.updateItemOK(t, soup.ID, 0)
	view = rt.showCartOK(t)
	if view.TotalItems != 1 || view.TotalPrice != 1200 {
		t.Fatalf("expected a single rice bowl left, got %d items worth %d", view.TotalItems, view.TotalPrice)
	}

	rt.applyPromotionsOK(t, []string{promo.ID})
	view = rt.showCartOK(t)
	g := view.Merchants[0]
	if g.Original != 1200 || g.Discount != 120 || g.Final != 1080 {
		t.Fatalf("expected totals 1200/120/1080, got %d/%d/%d", g.Original, g.Discount, g.Final)
	}

	rt.removePromotionsOK(t)
	view = rt.showCartOK(t)
	if view.Merchants[0].Discount != 0 {
		t.Fatalf("expected no discount after removal, got %d", view.Merchants[0].Discount)
	}

	rt.clearCartOK(t)
	view = rt.showCartOK(t)
	if view.TotalItems != 0 {
		t.Fatalf("expected empty cart after clear, got %d items", view.TotalItems)
	}
}

// TestGuestCart verifies the cart works without authentication, keyed to the
// session cookie, and does not leak into an authenticated user's cart.
func TestGuestCart(t *testing.T) {
	env, err := NewTestEnv(t, "guest_cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}
	rice := rt.createProductOK(t, "rice bowl", 1200)

	rt.addItemOK(t, rice.ID, 2)
	view := rt.showCartOK(t)
	if view.TotalItems != 2 {
		t.Fatalf("expected 2 items in the guest cart, got %d", view.TotalItems)
	}

	rt.Login(t, customerEmail, customerPass)
	defer rt.Logout(t)

	view = rt.showCartOK(t)
	if view.TotalItems != 0 {
		t.Fatalf("expected the user cart to start empty, got %d items", view.TotalItems)
	}
}

// TestCartSnapshotReset verifies that snapshots written under a foreign
// schema version, or with an unreadable payload, load as a fresh cart.
func TestCartSnapshotReset(t *testing.T) {
	env, err := NewTestEnv(t, "cart_snapshot_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	rt := &cartTest{env}
	rice := rt.createProductOK(t, "rice bowl", 1200)

	rt.Login(t, customerEmail, customerPass)
	defer rt.Logout(t)

	usr, err := user.FetchByEmail(context.Background(), env.DB, customerEmail)
	if err != nil {
		t.Fatalf("fetching seeded customer: %v", err)
	}

	rt.addItemOK(t, rice.ID, 1)

	// A snapshot from a future schema version must not be interpreted.
	if _, err := env.DB.Exec(`UPDATE carts SET schema_version = 99 WHERE owner_id = $1`, usr.ID); err != nil {
		t.Fatalf("rewriting snapshot version: %v", err)
	}
	if view := rt.showCartOK(t); view.TotalItems != 0 {
		t.Fatalf("expected a fresh cart for a foreign schema version, got %d items", view.TotalItems)
	}

	// Same for a payload that does not decode into a cart.
	if _, err := env.DB.Exec(`UPDATE carts SET schema_version = 1, payload = '"garbage"' WHERE owner_id = $1`, usr.ID); err != nil {
		t.Fatalf("rewriting snapshot payload: %v", err)
	}
	if view := rt.showCartOK(t); view.TotalItems != 0 {
		t.Fatalf("expected a fresh cart for an unreadable payload, got %d items", view.TotalItems)
	}

	// The reset cart is usable again.
	rt.addItemOK(t, rice.ID, 2)
	if view := rt.showCartOK(t); view.TotalItems != 2 {
		t.Fatalf("expected 2 items after re-adding, got %d", view.TotalItems)
	}
}

func (rt *cartTest) createProductOK(t *testing.T, name string, price int64) product.Product {
	t.Helper()

	rt.Login(t, sellerEmail, sellerPass)
	defer rt.Logout(t)

	body, err := json.Marshal(product.ProductNew{Name: name, Price: price})
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Post(rt.URL+"/products", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create product: status code %s", w.Status)
	}

	var prd product.Product
	if err := json.NewDecoder(w.Body).Decode(&prd); err != nil {
		t.Fatalf("cannot unmarshal created product: %v", err)
	}
	return prd
}

func (rt *cartTest) createPromotionOK(t *testing.T, rn promotion.RuleNew) promotion.Rule {
	t.Helper()

	rt.Login(t, sellerEmail, sellerPass)
	defer rt.Logout(t)

	body, err := json.Marshal(rn)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Post(rt.URL+"/promotions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't create promotion: status code %s", w.Status)
	}

	var rule promotion.Rule
	if err := json.NewDecoder(w.Body).Decode(&rule); err != nil {
		t.Fatalf("cannot unmarshal created promotion: %v", err)
	}
	return rule
}

func (rt *cartTest) addItemOK(t *testing.T, productID string, quantity int) {
	t.Helper()

	body := fmt.Sprintf(`{"productId":%q,"quantity":%d}`, productID, quantity)
	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/items", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't add item to cart: status code %s", w.Status)
	}
}

func (rt *cartTest) updateItemOK(t *testing.T, productID string, quantity int) {
	t.Helper()

	body := fmt.Sprintf(`{"quantity":%d}`, quantity)
	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/items/"+productID, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't update cart item: status code %s", w.Status)
	}
}

func (rt *cartTest) applyPromotionsOK(t *testing.T, ids []string) {
	t.Helper()

	body, err := json.Marshal(cart.PromotionsUp{PromotionIDs: ids})
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPut, rt.URL+"/cart/merchants/"+rt.MerchantID+"/promotions", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't apply promotions: status code %s", w.Status)
	}
}

func (rt *cartTest) removePromotionsOK(t *testing.T) {
	t.Helper()

	r, err := http.NewRequest(http.MethodDelete, rt.URL+"/cart/merchants/"+rt.MerchantID+"/promotions", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't remove promotions: status code %s", w.Status)
	}
}

func (rt *cartTest) clearCartOK(t *testing.T) {
	t.Helper()

	r, err := http.NewRequest(http.MethodDelete, rt.URL+"/cart", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := rt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't clear cart: status code %s", w.Status)
	}
}

func (rt *cartTest) showCartOK(t *testing.T) cart.View {
	t.Helper()

	w, err := rt.Client().Get(rt.URL + "/cart")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch cart: status code %s", w.Status)
	}

	var view cart.View
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("cannot unmarshal cart view: %v", err)
	}
	return view
}
