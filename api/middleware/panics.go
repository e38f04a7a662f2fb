package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
)

// Panics turns a panic in the handler chain into an error carrying the stack,
// so Errors can log it and answer with a 500.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = weberr.InternalError(
						fmt.Errorf("panic: %v", rec),
						weberr.WithField("trace", string(debug.Stack())),
					)
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
