package merchant

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		mchs, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, mchs, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		mch, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, mch, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var m MerchantNew
		if err := web.Decode(w, r, &m); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(m); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		mch := Merchant{
			ID:          validate.GenerateID(),
			OwnerID:     m.OwnerID,
			Name:        m.Name,
			Description: m.Description,
			ImageURL:    m.ImageURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, mch); err != nil {
			return err
		}

		return web.Respond(ctx, w, mch, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var m MerchantUp
		if err := web.Decode(w, r, &m); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(m); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		mch, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !claims.IsAdmin(ctx) && !claims.IsUser(ctx, mch.OwnerID) {
			return weberr.NotAuthorized(errors.New("user does not own this merchant"))
		}

		if m.Name != nil {
			mch.Name = *m.Name
		}
		if m.Description != nil {
			mch.Description = *m.Description
		}
		if m.ImageURL != nil {
			mch.ImageURL = *m.ImageURL
		}
		mch.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, mch); err != nil {
			return err
		}

		return web.Respond(ctx, w, mch, http.StatusOK)
	}
}
