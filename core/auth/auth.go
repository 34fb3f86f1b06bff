package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/alexedwards/scs/v2"
)

const (
	sessionUserID = "user_id"
	sessionRole   = "user_role"
)

// LoadAndSave adapts the session manager's http middleware to the service's
// handler signature, so every request runs inside a session context.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			var err error
			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))

			sh.ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a logged-in session and stores the
// session's identity as claims in the context.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			uid := session.GetString(ctx, sessionUserID)
			if uid == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			clm := claims.Claims{
				UserID: uid,
				Role:   session.GetString(ctx, sessionRole),
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Admin allows only sessions carrying the admin role.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			uid := session.GetString(ctx, sessionUserID)
			role := session.GetString(ctx, sessionRole)
			if uid == "" || role != claims.RoleAdmin {
				return weberr.NotAuthorized(errors.New("user is not an admin"))
			}

			clm := claims.Claims{UserID: uid, Role: role}
			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Merchant allows sessions carrying the merchant or the admin role.
func Merchant(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			uid := session.GetString(ctx, sessionUserID)
			role := session.GetString(ctx, sessionRole)
			if uid == "" || (role != claims.RoleMerchant && role != claims.RoleAdmin) {
				return weberr.NotAuthorized(errors.New("user is not a merchant"))
			}

			clm := claims.Claims{UserID: uid, Role: role}
			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

func login(ctx context.Context, session *scs.SessionManager, userID string, role string) error {
	if err := session.RenewToken(ctx); err != nil {
		return err
	}

	session.Put(ctx, sessionUserID, userID)
	session.Put(ctx, sessionRole, role)
	return nil
}
