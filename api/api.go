package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/83west/storefront/api/middleware"
	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/core/checkout"
	"github.com/83west/storefront/core/product"
	"github.com/83west/storefront/rate"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	Catalog       product.Source
	Registry      *cart.Registry
	Provider      checkout.Provider
	Public        checkout.PublicConfig
	// WebhookSecret signs Stripe events. The webhook route is only served
	// when it is set.
	WebhookSecret string
	// Limiter guards the routes that reach the payment provider. Nil
	// disables rate limiting.
	Limiter *rate.Limiter
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

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	a.Router.NotFoundHandler = a.wrap(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return weberr.NotFound(fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
	})
	a.Router.MethodNotAllowedHandler = a.wrap(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return weberr.MethodNotAllowed(fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
	})

	var limit []web.Middleware
	if cfg.Limiter != nil {
		limit = append(limit, middleware.RateLimit(cfg.Limiter))
	}

	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.Catalog))
	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.Catalog))

	a.Handle(http.MethodPost, "/carts", cart.HandleCreate(cfg.Registry))
	a.Handle(http.MethodGet, "/carts/{cart_id}", cart.HandleShow(cfg.Registry))
	a.Handle(http.MethodDelete, "/carts/{cart_id}", cart.HandleClear(cfg.Registry))
	a.Handle(http.MethodPut, "/carts/{cart_id}/items", cart.HandleAddItem(cfg.Registry, cfg.Catalog))
	a.Handle(http.MethodPut, "/carts/{cart_id}/items/{product_id}", cart.HandleSetQuantity(cfg.Registry))
	a.Handle(http.MethodDelete, "/carts/{cart_id}/items/{product_id}", cart.HandleRemoveItem(cfg.Registry))
	a.Handle(http.MethodPost, "/carts/{cart_id}/toggle", cart.HandleToggle(cfg.Registry))
	a.Handle(http.MethodPost, "/carts/{cart_id}/checkout", checkout.HandleCartCheckout(cfg.Registry, cfg.Provider), limit...)

	a.Handle(http.MethodPost, "/checkout/sessions", checkout.HandleCreateSession(cfg.Provider), limit...)
	a.Handle(http.MethodGet, "/checkout/config", checkout.HandleConfig(cfg.Public))
	if cfg.WebhookSecret != "" {
		a.Handle(http.MethodPost, "/checkout/webhook", checkout.HandleWebhook(cfg.Registry, cfg.WebhookSecret, cfg.Log))
	}

	return a.Router
}

func (a *api) wrap(handler web.Handler, mw ...web.Middleware) http.Handler {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {
	a.Router.Handle(path, a.wrap(handler, mw...)).Methods(method)
}
