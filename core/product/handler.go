package product

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

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prds, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, prds, http.StatusOK)
	}
}

func HandleListByMerchant(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "merchant_id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		prds, err := FetchByMerchant(ctx, db, id)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, prds, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		prd, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}

// ownedMerchant resolves the merchant the logged-in user operates. Admins may
// act on behalf of any merchant via the merchant_id query parameter.
func ownedMerchant(ctx context.Context, db *sqlx.DB, r *http.Request) (merchant.Merchant, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return merchant.Merchant{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	if clm.Role == claims.RoleAdmin {
		if id := r.URL.Query().Get("merchant_id"); id != "" {
			return merchant.Fetch(ctx, db, id)
		}
	}

	mch, err := merchant.FetchByOwner(ctx, db, clm.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return merchant.Merchant{}, weberr.NotAuthorized(errors.New("user operates no merchant"))
		}
		return merchant.Merchant{}, err
	}

	return mch, nil
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var p ProductNew
		if err := web.Decode(w, r, &p); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(p); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		mch, err := ownedMerchant(ctx, db, r)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		prd := Product{
			ID:          validate.GenerateID(),
			MerchantID:  mch.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
			Price:       p.Price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, prd); err != nil {
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var p ProductUp
		if err := web.Decode(w, r, &p); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(p); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		prd, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		mch, err := ownedMerchant(ctx, db, r)
		if err != nil {
			return err
		}
		if prd.MerchantID != mch.ID {
			return weberr.NotAuthorized(errors.New("product belongs to another merchant"))
		}

		if p.Name != nil {
			prd.Name = *p.Name
		}
		if p.Description != nil {
			prd.Description = *p.Description
		}
		if p.Category != nil {
			prd.Category = *p.Category
		}
		if p.ImageURL != nil {
			prd.ImageURL = *p.ImageURL
		}
		if p.Price != nil {
			prd.Price = *p.Price
		}
		prd.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, prd); err != nil {
			return err
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}
