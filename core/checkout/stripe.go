package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type StripeConfig struct {
	SecretKey string
	// URL overrides the API endpoint, for tests and mocks.
	URL string
}

// NewStripeAPI builds a stripe client that never retries a request and logs
// through log.
func NewStripeAPI(cfg StripeConfig, log stripe.LeveledLoggerInterface) *stripecl.API {
	bcfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     log,
	}
	if cfg.URL != "" {
		bcfg.URL = stripe.String(cfg.URL)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bcfg)
	uploads := stripe.GetBackendWithConfig(stripe.UploadsBackend, bcfg)

	strp := &stripecl.API{}
	strp.Init(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: uploads,
	})
	return strp
}

// StripeProvider creates Stripe Checkout Sessions.
type StripeProvider struct {
	strp      *stripecl.API
	currency  string
	redirects Redirects
}

func NewStripeProvider(strp *stripecl.API, currency string, redirects Redirects) *StripeProvider {
	if currency == "" {
		currency = "usd"
	}
	return &StripeProvider{
		strp:      strp,
		currency:  strings.ToLower(currency),
		redirects: redirects,
	}
}

func (p *StripeProvider) params(req SessionRequest) *stripe.CheckoutSessionParams {
	li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		pd := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if len(l.Images) > 0 {
			pd.Images = stripe.StringSlice(l.Images[:1])
		}

		li = append(li, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(l.Quantity)),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.currency),
				UnitAmount:  stripe.Int64(UnitAmount(l.Price)),
				ProductData: pd,
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(p.redirects.Success() + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(p.redirects.Cancel()),
		LineItems:          li,
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
	}
	return params
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := p.params(req)
	params.Context = ctx

	s, err := p.strp.CheckoutSessions.New(params)
	if err != nil {
		if cerr := ctx.Err(); errors.Is(cerr, context.Canceled) {
			return Session{}, cerr
		}
		return Session{}, stripeError(err)
	}

	if s.ID == "" {
		return Session{}, &ProviderError{
			Provider:  "stripe",
			Temporary: true,
			Err:       errors.New("session without id"),
		}
	}

	return Session{ID: s.ID, URL: s.URL}, nil
}

func stripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return &ProviderError{Provider: "stripe", Temporary: true, Err: err}
	}

	return &ProviderError{
		Provider:  "stripe",
		Message:   serr.Msg,
		Status:    serr.HTTPStatusCode,
		Temporary: serr.HTTPStatusCode == 0 || serr.HTTPStatusCode >= http.StatusInternalServerError || serr.HTTPStatusCode == http.StatusTooManyRequests,
		Err:       err,
	}
}
