package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/background"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/config"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/cart"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/database"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/events"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/validate"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// checkout resolves the merchant slice of the user's cart that is about to be
// purchased: its lines, the discounted total, and the applied promotion ids.
func checkout(ctx context.Context, db *sqlx.DB, userID string, merchantID string) ([]cart.Line, cart.Totals, []string, error) {
	c, err := cart.Fetch(ctx, db, userID)
	if err != nil {
		return nil, cart.Totals{}, nil, fmt.Errorf("fetching cart: %w", err)
	}

	var lines []cart.Line
	for _, l := range c.Lines {
		if l.MerchantID == merchantID {
			lines = append(lines, l)
		}
	}

	tot := c.MerchantTotalWithDiscount(merchantID, nil)

	var promoIDs []string
	for _, rule := range c.Promotions[merchantID] {
		promoIDs = append(promoIDs, rule.ID)
	}

	return lines, tot, promoIDs, nil
}

// prepare persists the pending order bound to the payment provider's id,
// with the payment deadline attached.
func prepare(ctx context.Context, db *sqlx.DB, ord Order, lines []cart.Line) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Create(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		for _, l := range lines {
			it := Item{
				OrderID:   ord.ID,
				ProductID: l.ProductID,
				Name:      l.Name,
				UnitPrice: l.UnitPrice,
				Quantity:  l.Quantity,
				CreatedAt: ord.CreatedAt,
			}

			if err := CreateItem(ctx, tx, it); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", ord.ProviderID, ord.UserID, err)
	}
	return nil
}

// fulfill marks the order paid, flushes the merchant's slice of the buyer's
// cart, and bumps the usage counters of the promotions the order carried.
// The paid transition is guarded on the pending status, so an order the
// sweeper already closed fails here instead of being resurrected.
func fulfill(ctx context.Context, db *sqlx.DB, bg *background.Background, pub *events.Publisher, providerID string) error {
	ord, err := FetchByProviderID(ctx, db, providerID)
	if err != nil {
		return fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		n, err := MarkPaid(ctx, tx, ord.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("order[%s] is no longer pending", ord.ID)
		}

		c, err := cart.Fetch(ctx, tx, ord.UserID)
		if err != nil {
			return err
		}
		c.ClearMerchant(ord.MerchantID)
		c.RemovePromotions(ord.MerchantID)
		if err := cart.Save(ctx, tx, ord.UserID, c); err != nil {
			return err
		}

		if len(ord.PromotionIDs) > 0 {
			if err := promotion.BumpUsage(ctx, tx, ord.PromotionIDs); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("fulfilling the order[%s] bound to payment[%s]: %w", ord.ID, providerID, err)
	}

	bg.Add(func() {
		pub.PublishOrderPaid(context.Background(), events.OrderPaid{
			OrderID:    ord.ID,
			UserID:     ord.UserID,
			MerchantID: ord.MerchantID,
		})
	})

	return nil
}

func money(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func newOrder(userID string, merchantID string, providerID string, tot cart.Totals, promoIDs []string, closeAfter time.Duration) Order {
	now := time.Now().UTC()
	closeAt := now.Add(closeAfter)
	if promoIDs == nil {
		promoIDs = []string{}
	}
	return Order{
		ID:           validate.GenerateID(),
		UserID:       userID,
		MerchantID:   merchantID,
		ProviderID:   providerID,
		Status:       Pending,
		Total:        tot.Final,
		PromotionIDs: pq.StringArray(promoIDs),
		AutoCloseAt:  &closeAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client, cfg config.Order, bg *background.Background, pub *events.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var chk CheckoutNew
		if err := web.Decode(w, r, &chk); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(chk); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		lines, tot, promoIDs, err := checkout(ctx, db, clm.UserID, chk.MerchantID)
		if err != nil {
			return fmt.Errorf("resolving cart for checkout: %w", err)
		}

		if len(lines) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		units := []paypal.PurchaseUnitRequest{{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    money(tot.Final),
			},
		}}

		pord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		ord := newOrder(clm.UserID, chk.MerchantID, pord.ID, tot, promoIDs, cfg.AutoCloseAfter)
		if err := prepare(ctx, db, ord, lines); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		bg.Add(func() {
			pub.PublishOrderCreated(context.Background(), events.OrderCreated{
				OrderID:    ord.ID,
				UserID:     ord.UserID,
				MerchantID: ord.MerchantID,
				Total:      ord.Total,
			})
		})

		return web.Respond(ctx, w, pord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, bg *background.Background, pub *events.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, bg, pub, providerID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, strp *stripecl.API, stripeCfg config.Stripe, cfg config.Order, bg *background.Background, pub *events.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var chk CheckoutNew
		if err := web.Decode(w, r, &chk); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(chk); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		lines, tot, promoIDs, err := checkout(ctx, db, clm.UserID, chk.MerchantID)
		if err != nil {
			return fmt.Errorf("resolving cart for checkout: %w", err)
		}

		if len(lines) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		li := []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String("usd"),
				TaxBehavior: stripe.String("inclusive"),
				UnitAmount:  stripe.Int64(tot.Final),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("takeaway order"),
				},
			},
		}}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(stripeCfg.SuccessURL),
			CancelURL:  stripe.String(stripeCfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  li,
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		ord := newOrder(clm.UserID, chk.MerchantID, s.ID, tot, promoIDs, cfg.AutoCloseAfter)
		if err := prepare(ctx, db, ord, lines); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		bg.Add(func() {
			pub.PublishOrderCreated(context.Background(), events.OrderCreated{
				OrderID:    ord.ID,
				UserID:     ord.UserID,
				MerchantID: ord.MerchantID,
				Total:      ord.Total,
			})
		})

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe, bg *background.Background, pub *events.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, bg, pub, session.ID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ords, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ords, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !claims.IsAdmin(ctx) && !claims.IsUser(ctx, ord.UserID) {
			return weberr.NotAuthorized(errors.New("user trying to fetch another user's order"))
		}

		items, err := FetchItems(ctx, db, ord.ID)
		if err != nil {
			return err
		}

		resp := struct {
			Order
			Items []Item `json:"items"`
		}{ord, items}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleSweep triggers one synchronous sweep, the on-demand counterpart of
// the scheduled loop.
func HandleSweep(sw *Sweeper) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		n, err := sw.ManualCheck(ctx)
		if err != nil {
			return fmt.Errorf("manual sweep: %w", err)
		}

		resp := struct {
			Closed int64 `json:"closed"`
		}{n}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
