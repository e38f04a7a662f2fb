package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
	"github.com/83west/storefront/core/product"
	"github.com/83west/storefront/validate"
)

type ItemNew struct {
	ProductID int  `json:"productId" validate:"gte=0"`
	Quantity  *int `json:"quantity" validate:"omitempty,gte=1"`
}

type QuantityUp struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// Lookup resolves the {cart_id} path parameter to its store.
func Lookup(ctx context.Context, reg *Registry, r *http.Request) (*Store, error) {
	return lookup(ctx, r, reg.Open)
}

// LookupView is Lookup for handlers that only read the cart.
func LookupView(ctx context.Context, reg *Registry, r *http.Request) (*Store, error) {
	return lookup(ctx, r, reg.Peek)
}

func lookup(ctx context.Context, r *http.Request, open func(context.Context, string) (*Store, error)) (*Store, error) {
	id := web.Param(r, "cart_id")
	if err := validate.CheckID(id); err != nil {
		return nil, weberr.BadRequest(fmt.Errorf("cart id: %w", err), weberr.WithField("cart_id", id))
	}

	s, err := open(ctx, id)
	if err != nil {
		return nil, UnavailableError(err)
	}
	return s, nil
}

// UnavailableError answers a failed cart load.
func UnavailableError(err error) error {
	return weberr.NewError(err, "cart storage unavailable, try again later", http.StatusServiceUnavailable)
}

func HandleCreate(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s := reg.New(ctx)
		return web.Respond(ctx, w, s.Cart(), http.StatusCreated)
	}
}

func HandleShow(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := LookupView(ctx, reg, r)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, s.Cart(), http.StatusOK)
	}
}

func HandleClear(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := Lookup(ctx, reg, r)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, s.Clear(ctx), http.StatusOK)
	}
}

func HandleToggle(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := Lookup(ctx, reg, r)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, s.ToggleOpen(), http.StatusOK)
	}
}

func HandleAddItem(reg *Registry, catalog product.Source) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := Lookup(ctx, reg, r)
		if err != nil {
			return err
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		quantity := 1
		if in.Quantity != nil {
			quantity = *in.Quantity
		}

		p, err := product.Find(ctx, catalog, in.ProductID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			return weberr.NotFound(err, weberr.WithField("product_id", in.ProductID))
		case err != nil:
			return weberr.NewError(err, "error loading products: "+err.Error(), http.StatusBadGateway)
		}

		if !p.Available {
			err := fmt.Errorf("product %d is not available", p.ID)
			return weberr.Client(err, http.StatusUnprocessableEntity)
		}

		return web.Respond(ctx, w, s.AddItem(ctx, p, quantity), http.StatusOK)
	}
}

func HandleSetQuantity(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := Lookup(ctx, reg, r)
		if err != nil {
			return err
		}

		productID, err := web.ParamInt(r, "product_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var up QuantityUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.BadRequest(err)
		}

		return web.Respond(ctx, w, s.SetQuantity(ctx, productID, *up.Quantity), http.StatusOK)
	}
}

func HandleRemoveItem(reg *Registry) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := Lookup(ctx, reg, r)
		if err != nil {
			return err
		}

		productID, err := web.ParamInt(r, "product_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		return web.Respond(ctx, w, s.RemoveItem(ctx, productID), http.StatusOK)
	}
}
