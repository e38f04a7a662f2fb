package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
)

func catalogError(err error) error {
	return weberr.NewError(err, "error loading products: "+err.Error(), http.StatusBadGateway)
}

func HandleList(src Source) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var onlyAvailable bool
		if v := r.URL.Query().Get("available"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return weberr.BadRequest(fmt.Errorf("available must be a boolean, got %q", v))
			}
			onlyAvailable = b
		}

		products, err := src.List(ctx)
		if err != nil {
			return catalogError(err)
		}

		if onlyAvailable {
			filtered := make([]Product, 0, len(products))
			for _, p := range products {
				if p.Available {
					filtered = append(filtered, p)
				}
			}
			products = filtered
		}

		return web.Respond(ctx, w, products, http.StatusOK)
	}
}

func HandleShow(src Source) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := web.ParamInt(r, "id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		p, err := Find(ctx, src, id)
		switch {
		case errors.Is(err, ErrNotFound):
			return weberr.NotFound(err, weberr.WithField("product_id", id))
		case err != nil:
			return catalogError(err)
		}

		return web.Respond(ctx, w, p, http.StatusOK)
	}
}
