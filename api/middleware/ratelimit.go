package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/web"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/api/weberr"
	"github.com/Evan-Joseph/hospital-takeaway-sub001/rate"
)

// RateLimit rejects requests from clients that exceed their per-address
// budget tracked by the limiter.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("too many requests")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
