package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/background"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/config"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/claims"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/merchant"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/order"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/user"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/database"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"golang.org/x/crypto/bcrypt"
)

const (
	testWebhookSecret = "whsec_test_secret"

	customerEmail = "customer@test.local"
	customerPass  = "customer-pass-123"
	sellerEmail   = "seller@test.local"
	sellerPass    = "seller-pass-123"
	adminEmail    = "admin@test.local"
	adminPass     = "admin-pass-123"
)

// TestEnv spins up a throwaway Postgres container, migrates the schema,
// seeds one user per role plus a merchant, and serves the full API with
// mocked payment providers.
type TestEnv struct {
	DB      *sqlx.DB
	Server  *httptest.Server
	URL     string
	Sweeper *order.Sweeper

	MerchantID    string
	WebhookSecret string

	Paypal *mockPaypal
	Stripe *mockStripe

	client *http.Client
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	resource, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	resource.Expire(300)
	t.Cleanup(func() { pool.Purge(resource) })

	cfg := config.DB{
		User:       "postgres",
		Password:   "secret",
		Host:       "localhost:" + resource.GetPort("5432/tcp"),
		Name:       name,
		DisableTLS: true,
	}

	var db *sqlx.DB
	if err := pool.Retry(func() error {
		db, err = database.Open(cfg)
		return err
	}); err != nil {
		return nil, fmt.Errorf("waiting for postgres: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test schema: %w", err)
	}

	env := &TestEnv{
		DB:            db,
		WebhookSecret: testWebhookSecret,
		Paypal:        &mockPaypal{},
		Stripe:        &mockStripe{},
	}

	if err := env.seed(); err != nil {
		return nil, fmt.Errorf("seeding test data: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	paypalSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(paypalSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", paypalSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}
	if _, err := pp.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("fetching mock paypal token: %w", err)
	}

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)

	strp := &stripecl.API{}
	strp.Init("sk_test_key", &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(stripeSrv.URL),
		}),
	})

	session := scs.New()
	session.Lifetime = time.Hour

	env.Sweeper = order.NewSweeper(logger, order.Store{DB: db}, nil, time.Hour)

	mux := api.APIMux(api.APIConfig{
		Log:        logger,
		DB:         db,
		Session:    session,
		Background: background.New(logger),
		Paypal:     pp,
		Stripe:     strp,
		StripeCfg: config.Stripe{
			WebhookSecret: testWebhookSecret,
			SuccessURL:    "/success",
			CancelURL:     "/canceled",
		},
		OrderCfg: config.Order{
			AutoCloseAfter: 30 * time.Minute,
			SweepInterval:  time.Hour,
		},
		Sweeper: env.Sweeper,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)
	env.URL = env.Server.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	env.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return env, nil
}

// seed inserts one user per role and the merchant the seller operates.
func (env *TestEnv) seed() error {
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(name, email, pass, role string) (user.User, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
		if err != nil {
			return user.User{}, err
		}
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         name,
			Email:        email,
			Role:         role,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return usr, user.Create(ctx, env.DB, usr)
	}

	if _, err := mk("customer", customerEmail, customerPass, claims.RoleCustomer); err != nil {
		return err
	}
	if _, err := mk("admin", adminEmail, adminPass, claims.RoleAdmin); err != nil {
		return err
	}

	seller, err := mk("seller", sellerEmail, sellerPass, claims.RoleMerchant)
	if err != nil {
		return err
	}

	mch := merchant.Merchant{
		ID:        validate.GenerateID(),
		OwnerID:   seller.ID,
		Name:      "第一食堂",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := merchant.Create(ctx, env.DB, mch); err != nil {
		return err
	}
	env.MerchantID = mch.ID

	return nil
}

func (env *TestEnv) Client() *http.Client {
	return env.client
}

func (env *TestEnv) Login(t *testing.T, email, pass string) {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, pass)
	resp, err := env.client.Post(env.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status code %s", resp.Status)
	}
}

func (env *TestEnv) Logout(t *testing.T) {
	t.Helper()

	resp, err := env.client.Post(env.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout failed: status code %s", resp.Status)
	}
}
