// Package checkout hands a cart over to a hosted payment page. It maps cart
// lines to the provider's line items, asks the provider for a one-time
// payment session and returns the session handle the client redirects with.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/83west/storefront/core/cart"
	"github.com/shopspring/decimal"
)

var ErrEmptyCart = errors.New("cart is empty")

// Request is the body of a checkout call carrying the client's own lines.
type Request struct {
	CartItems []Item `json:"cartItems" validate:"dive"`
}

// Item is a cart line as clients post it: the line plus the product fields
// a client keeps around but the provider never sees.
type Item struct {
	cart.Line
	Description string `json:"description,omitempty"`
	Available   *bool  `json:"available,omitempty"`
}

func (r Request) Lines() []cart.Line {
	lines := make([]cart.Line, len(r.CartItems))
	for i, it := range r.CartItems {
		lines[i] = it.Line
	}
	return lines
}

// SessionRequest is what a Provider receives. Reference ties the session to a
// stored cart and is empty for anonymous checkouts.
type SessionRequest struct {
	Lines     []cart.Line
	Reference string
}

// Session is the provider owned handle of a hosted payment page.
type Session struct {
	ID  string `json:"sessionId"`
	URL string `json:"url,omitempty"`
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// ProviderError is a failure reported by, or while talking to, a payment
// provider. Temporary failures are worth retrying later; the others are
// rejections of the request itself, like a declined card.
type ProviderError struct {
	Provider  string
	Message   string
	Status    int
	Temporary bool
	Err       error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UnitAmount converts a price in whole currency units to minor units,
// rounding half away from zero.
func UnitAmount(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

// Create asks p for a session on lines. It never calls p for an empty cart.
func Create(ctx context.Context, p Provider, lines []cart.Line, reference string) (Session, error) {
	if len(lines) == 0 {
		return Session{}, ErrEmptyCart
	}

	s, err := p.CreateSession(ctx, SessionRequest{Lines: lines, Reference: reference})
	if err != nil {
		return Session{}, fmt.Errorf("creating checkout session: %w", err)
	}
	return s, nil
}

// Redirects are the pages of the storefront the provider sends the buyer
// back to.
type Redirects struct {
	Base string
}

const (
	successPath = "/#/checkout-success"
	cancelPath  = "/#/cart-cancelled"
)

func (r Redirects) base() string {
	return strings.TrimRight(r.Base, "/")
}

func (r Redirects) Success() string {
	return r.base() + successPath
}

func (r Redirects) Cancel() string {
	return r.base() + cancelPath
}
