package config

import "time"

type Config struct {
	Web     Web
	Cors    Cors
	DB      DB
	Oauth   Oauth
	Paypal  Paypal
	Stripe  Stripe
	Order   Order
	Events  Events
	Limiter Limiter
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:takeaway"`
	DisableTLS bool   `conf:"default:true"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:/"`
	Google           Provider
}

type Provider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:/payment/success"`
	CancelURL     string `conf:"default:/payment/canceled"`
}

// Order drives the payment deadline attached to every new order and the
// sweep cadence that closes orders whose deadline elapsed unpaid.
type Order struct {
	AutoCloseAfter time.Duration `conf:"default:30m"`
	SweepInterval  time.Duration `conf:"default:5m"`
}

// Events configures the optional RabbitMQ publisher. Leaving URL empty
// disables event publishing entirely.
type Events struct {
	URL string `conf:"mask"`
}

type Limiter struct {
	Burst        int           `conf:"default:20"`
	ExpiryMin    int           `conf:"default:30"`
	RateInterval time.Duration `conf:"default:100ms"`
}
