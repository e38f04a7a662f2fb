package client

import (
	"context"
	"errors"
	"sync"

	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/core/checkout"
)

// State is where a checkout attempt stands.
type State int

const (
	Idle State = iota
	Requesting
	SessionCreated
	Redirecting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case SessionCreated:
		return "session-created"
	case Redirecting:
		return "redirecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

const (
	EmptyCartMessage = "Your cart is empty."
	FailureMessage   = "Failed to create checkout session."
)

var (
	ErrEmptyCart  = errors.New(EmptyCartMessage)
	ErrInProgress = errors.New("a checkout attempt is already in progress")
)

// Redirector sends the buyer to the provider's hosted page.
type Redirector func(ctx context.Context, s checkout.Session) error

// Checkout runs checkout attempts one at a time. Every attempt starts over
// from the cart as it is when the attempt begins; a failed attempt is never
// resumed.
type Checkout struct {
	client   *Client
	redirect Redirector

	// OnState, when set, observes every transition.
	OnState func(State)

	mu      sync.Mutex
	busy    bool
	state   State
	message string
}

func NewCheckout(c *Client, redirect Redirector) *Checkout {
	return &Checkout{client: c, redirect: redirect}
}

func (co *Checkout) State() State {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state
}

// Message is the text to show for the last failed attempt.
func (co *Checkout) Message() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.message
}

func (co *Checkout) set(s State, msg string) {
	co.mu.Lock()
	co.state = s
	co.message = msg
	hook := co.OnState
	co.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

// begin claims the machine for a new attempt and moves a finished or failed
// one back to Idle.
func (co *Checkout) begin() error {
	co.mu.Lock()
	if co.busy {
		co.mu.Unlock()
		return ErrInProgress
	}
	co.busy = true
	retry := co.state != Idle
	co.mu.Unlock()

	if retry {
		co.set(Idle, "")
	}
	return nil
}

func (co *Checkout) release() {
	co.mu.Lock()
	co.busy = false
	co.mu.Unlock()
}

// Cart checks out the stored cart cartID.
func (co *Checkout) Cart(ctx context.Context, cartID string) (checkout.Session, error) {
	return co.run(ctx, func(ctx context.Context) (int, func() (checkout.Session, error), error) {
		ct, err := co.client.Cart(ctx, cartID)
		if err != nil {
			return 0, nil, err
		}
		return len(ct.Items), func() (checkout.Session, error) {
			return co.client.CheckoutCart(ctx, cartID)
		}, nil
	})
}

// Lines checks out lines held by the caller.
func (co *Checkout) Lines(ctx context.Context, lines []cart.Line) (checkout.Session, error) {
	return co.run(ctx, func(ctx context.Context) (int, func() (checkout.Session, error), error) {
		return len(lines), func() (checkout.Session, error) {
			return co.client.CreateSession(ctx, lines)
		}, nil
	})
}

type prepareFunc func(ctx context.Context) (int, func() (checkout.Session, error), error)

func (co *Checkout) run(ctx context.Context, prepare prepareFunc) (checkout.Session, error) {
	if err := co.begin(); err != nil {
		return checkout.Session{}, err
	}
	defer co.release()

	n, create, err := prepare(ctx)
	if err != nil {
		return co.fail(err)
	}
	if n == 0 {
		return co.fail(ErrEmptyCart)
	}

	co.set(Requesting, "")
	s, err := create()
	if err != nil {
		return co.fail(err)
	}
	co.set(SessionCreated, "")

	co.set(Redirecting, "")
	if co.redirect != nil {
		if err := co.redirect(ctx, s); err != nil {
			return co.fail(err)
		}
	}
	return s, nil
}

func (co *Checkout) fail(err error) (checkout.Session, error) {
	msg := FailureMessage

	var cerr *Error
	switch {
	case errors.Is(err, ErrEmptyCart):
		msg = EmptyCartMessage
	case errors.As(err, &cerr) && cerr.Message != "":
		msg = cerr.Message
	}

	co.set(Failed, msg)
	return checkout.Session{}, err
}
