package api

import (
	"context"
	"net/http"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/background"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/middleware"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/config"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/auth"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/cart"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/merchant"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/order"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/product"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/user"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/database"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/events"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/rate"
	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Background *background.Background
	Paypal     *paypal.Client
	Stripe     *stripecl.API
	StripeCfg  config.Stripe
	OrderCfg   config.Order
	Providers  map[string]auth.Provider
	Publisher  *events.Publisher
	Sweeper    *order.Sweeper
	Limiter    *rate.Limiter

	LoginRedirectURL string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	seller := auth.Merchant(cfg.Session)

	health := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := database.StatusCheck(ctx, cfg.DB); err != nil {
			return web.Respond(ctx, w, map[string]string{"status": "db not ready"}, http.StatusInternalServerError)
		}
		return web.Respond(ctx, w, map[string]string{"status": "ok"}, http.StatusOK)
	}
	a.Handle(http.MethodGet, "/health", health)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users", user.HandleList(cfg.DB), admin)

	a.Handle(http.MethodGet, "/merchants/{merchant_id}/products", product.HandleListByMerchant(cfg.DB))
	a.Handle(http.MethodGet, "/merchants/{merchant_id}/promotions", promotion.HandleListByMerchant(cfg.DB))
	a.Handle(http.MethodGet, "/merchants/{id}", merchant.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/merchants", merchant.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/merchants", merchant.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/merchants/{id}", merchant.HandleUpdate(cfg.DB), seller)

	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(cfg.DB), seller)
	a.Handle(http.MethodPut, "/products/{id}", product.HandleUpdate(cfg.DB), seller)

	a.Handle(http.MethodPost, "/promotions", promotion.HandleCreate(cfg.DB), seller)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB, cfg.Session))
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.DB, cfg.Session))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleAddItem(cfg.DB, cfg.Session))
	a.Handle(http.MethodPut, "/cart/items/{product_id}", cart.HandleUpdateItem(cfg.DB, cfg.Session))
	a.Handle(http.MethodDelete, "/cart/items/{product_id}", cart.HandleDeleteItem(cfg.DB, cfg.Session))
	a.Handle(http.MethodDelete, "/cart/merchants/{merchant_id}/items", cart.HandleClearMerchant(cfg.DB, cfg.Session))
	a.Handle(http.MethodPut, "/cart/merchants/{merchant_id}/promotions", cart.HandleApplyPromotions(cfg.DB, cfg.Session))
	a.Handle(http.MethodDelete, "/cart/merchants/{merchant_id}/promotions", cart.HandleRemovePromotions(cfg.DB, cfg.Session))

	a.Handle(http.MethodPost, "/orders/paypal", order.HandlePaypalCheckout(cfg.DB, cfg.Paypal, cfg.OrderCfg, cfg.Background, cfg.Publisher), authen)
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.Background, cfg.Publisher), authen)
	a.Handle(http.MethodPost, "/orders/stripe", order.HandleStripeCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg, cfg.OrderCfg, cfg.Background, cfg.Publisher), authen)
	a.Handle(http.MethodPost, "/orders/stripe/capture", order.HandleStripeCapture(cfg.DB, cfg.StripeCfg, cfg.Background, cfg.Publisher))
	a.Handle(http.MethodPost, "/orders/sweep", order.HandleSweep(cfg.Sweeper), admin)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
