package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/merchant"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/product"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/random"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

const sessionDeviceKey = "cart_device"

type ItemNew struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type QuantityUp struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type PromotionsUp struct {
	PromotionIDs []string `json:"promotionIds" validate:"required,min=1,dive,uuid4"`
}

// GroupView is one merchant's cart slice plus its discounted totals.
type GroupView struct {
	Group
	Totals
}

type View struct {
	Merchants  []GroupView `json:"merchants"`
	TotalItems int         `json:"totalItems"`
	TotalPrice int64       `json:"totalPrice"`
}

func NewView(c Cart) View {
	groups := c.Groups()
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, GroupView{
			Group:  g,
			Totals: c.MerchantTotalWithDiscount(g.MerchantID, nil),
		})
	}

	return View{
		Merchants:  views,
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

// OwnerKey identifies whose cart a request operates on: the user id for
// logged-in sessions, otherwise a random per-device key pinned to the
// session. Carts never sync across devices.
func OwnerKey(ctx context.Context, session *scs.SessionManager) (string, error) {
	if clm, err := claims.Get(ctx); err == nil {
		return clm.UserID, nil
	}

	if uid := session.GetString(ctx, "user_id"); uid != "" {
		return uid, nil
	}

	if key := session.GetString(ctx, sessionDeviceKey); key != "" {
		return key, nil
	}

	key, err := random.StringSecure(24)
	if err != nil {
		return "", fmt.Errorf("generating device cart key: %w", err)
	}
	key = "device:" + key
	session.Put(ctx, sessionDeviceKey, key)

	return key, nil
}

func HandleShow(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleAddItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var it ItemNew
		if err := web.Decode(w, r, &it); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(it); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		prd, err := product.Fetch(ctx, db, it.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		mch, err := merchant.Fetch(ctx, db, prd.MerchantID)
		if err != nil {
			return err
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		c.AddItem(prd, it.Quantity, mch.Name)

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleUpdateItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var up QuantityUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		for _, l := range c.Lines {
			if l.ProductID == productID {
				c.UpdateQuantity(l.ProductID, l.MerchantID, up.Quantity)
				break
			}
		}

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		for _, l := range c.Lines {
			if l.ProductID == productID {
				c.RemoveItem(l.ProductID, l.MerchantID)
				break
			}
		}

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleClear(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		c.Clear()

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleClearMerchant(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		merchantID := web.Param(r, "merchant_id")
		if err := validate.CheckID(merchantID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		c.ClearMerchant(merchantID)

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleApplyPromotions(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		merchantID := web.Param(r, "merchant_id")
		if err := validate.CheckID(merchantID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var up PromotionsUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		rules, err := promotion.FetchSet(ctx, db, up.PromotionIDs)
		if err != nil {
			return err
		}

		if len(rules) != len(up.PromotionIDs) {
			err := errors.New("unknown promotion in set")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		for _, rule := range rules {
			if rule.MerchantID != merchantID {
				err := fmt.Errorf("promotion[%s] belongs to another merchant", rule.ID)
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		c.ApplyPromotions(merchantID, rules)

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}

func HandleRemovePromotions(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		merchantID := web.Param(r, "merchant_id")
		if err := validate.CheckID(merchantID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		owner, err := OwnerKey(ctx, session)
		if err != nil {
			return err
		}

		c, err := Fetch(ctx, db, owner)
		if err != nil {
			return err
		}

		c.RemovePromotions(merchantID)

		if err := Save(ctx, db, owner, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, NewView(c), http.StatusOK)
	}
}
