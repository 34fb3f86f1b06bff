package promotion

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/merchant"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/validate"
	"github.com/jmoiron/sqlx"
)

func HandleListByMerchant(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "merchant_id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		rules, err := FetchByMerchant(ctx, db, id)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, rules, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var p RuleNew
		if err := web.Decode(w, r, &p); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(p); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		mch, err := merchant.FetchByOwner(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotAuthorized(errors.New("user operates no merchant"))
			}
			return err
		}

		scope := p.ScopeKind
		if scope == "" {
			scope = ScopeGeneral
		}

		now := time.Now().UTC()
		rule := Rule{
			ID:            validate.GenerateID(),
			MerchantID:    mch.ID,
			Title:         p.Title,
			DiscountKind:  p.DiscountKind,
			DiscountValue: p.DiscountValue,
			ScopeKind:     scope,
			MinAmount:     p.MinAmount,
			UsageLimit:    p.UsageLimit,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, rule); err != nil {
			return err
		}

		return web.Respond(ctx, w, rule, http.StatusCreated)
	}
}
