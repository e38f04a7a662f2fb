package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
	"github.com/83west/storefront/rate"
)

// RateLimit rejects requests from a client whose bucket in lim is empty.
// Clients are keyed by the host part of the remote address.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			client := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				client = host
			}

			if !lim.Check(client) {
				return weberr.TooManyRequests(
					fmt.Errorf("client %s exceeded the rate limit", client),
					weberr.WithField("client", client),
				)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
