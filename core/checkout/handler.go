package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/validate"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

const fallbackMessage = "Something went wrong"

const maxWebhookBytes = 65536

// PublicConfig is what a client needs to initialise the provider's SDK.
type PublicConfig struct {
	Provider       string `json:"provider"`
	PublishableKey string `json:"publishableKey,omitempty"`
}

func sessionError(err error) error {
	var perr *ProviderError

	switch {
	case errors.Is(err, ErrEmptyCart):
		return weberr.BadRequest(ErrEmptyCart)

	case errors.Is(err, ErrUnavailable):
		return weberr.NewError(err, "payment provider unavailable, try again later", http.StatusServiceUnavailable)

	case errors.As(err, &perr):
		msg := perr.Message
		if msg == "" {
			msg = fallbackMessage
		}
		fields := weberr.WithFields(map[string]interface{}{
			"provider":        perr.Provider,
			"provider_status": perr.Status,
		})
		if perr.Temporary {
			return weberr.NewError(err, msg, http.StatusBadGateway, fields)
		}
		return weberr.NewError(err, msg, http.StatusBadRequest, fields)

	default:
		return weberr.NewError(err, fallbackMessage, http.StatusBadGateway)
	}
}

// HandleCreateSession checks out the lines posted by the client.
func HandleCreateSession(p Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req Request
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(req); err != nil {
			return weberr.BadRequest(err)
		}

		s, err := Create(ctx, p, req.Lines(), "")
		if err != nil {
			return sessionError(err)
		}

		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

// HandleCartCheckout checks out the stored cart named by the path. The cart
// is left as it is; it is cleared once the provider reports the payment.
func HandleCartCheckout(reg *cart.Registry, p Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		s, err := cart.LookupView(ctx, reg, r)
		if err != nil {
			return err
		}

		sess, err := Create(ctx, p, s.Lines(), s.ID())
		if err != nil {
			return sessionError(err)
		}

		return web.Respond(ctx, w, sess, http.StatusOK)
	}
}

func HandleConfig(pub PublicConfig) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, pub, http.StatusOK)
	}
}

// HandleWebhook receives Stripe events. A completed payment session that was
// created for a stored cart clears that cart. Without a signing secret every
// event is refused.
func HandleWebhook(reg *cart.Registry, secret string, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if secret == "" {
			return weberr.NewError(errors.New("webhook signing secret not configured"), "webhook not configured", http.StatusServiceUnavailable)
		}

		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, secret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment || session.ClientReferenceID == "" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := validate.CheckID(session.ClientReferenceID); err != nil {
			log.WithFields(logrus.Fields{
				"session_id": session.ID,
				"reference":  session.ClientReferenceID,
			}).Warn("completed session does not reference a cart")
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		s, err := reg.Peek(ctx, session.ClientReferenceID)
		if err != nil {
			return cart.UnavailableError(err)
		}
		if s.TotalItems() == 0 {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		s.Clear(ctx)
		log.WithFields(logrus.Fields{
			"session_id": session.ID,
			"cart_id":    session.ClientReferenceID,
		}).Info("payment completed, cart cleared")

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
