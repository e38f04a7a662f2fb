package checkout

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

// PaypalProvider creates PayPal orders with the CAPTURE intent. The order id
// is the session id and its approve link the hosted page.
type PaypalProvider struct {
	pp        *paypal.Client
	currency  string
	redirects Redirects
}

func NewPaypalProvider(pp *paypal.Client, currency string, redirects Redirects) *PaypalProvider {
	if currency == "" {
		currency = "usd"
	}
	return &PaypalProvider{
		pp:        pp,
		currency:  strings.ToUpper(currency),
		redirects: redirects,
	}
}

func (p *PaypalProvider) units(req SessionRequest) []paypal.PurchaseUnitRequest {
	tot := decimal.Zero
	items := make([]paypal.Item, 0, len(req.Lines))
	for _, l := range req.Lines {
		unit := decimal.New(UnitAmount(l.Price), -2)

		items = append(items, paypal.Item{
			Quantity: strconv.Itoa(l.Quantity),
			Name:     l.Name,
			SKU:      strconv.Itoa(l.ProductID),

			UnitAmount: &paypal.Money{
				Currency: p.currency,
				Value:    unit.StringFixed(2),
			},
		})

		tot = tot.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	return []paypal.PurchaseUnitRequest{{
		ReferenceID: req.Reference,
		Items:       items,

		Amount: &paypal.PurchaseUnitAmount{
			Currency: p.currency,
			Value:    tot.StringFixed(2),

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: p.currency,
				Value:    tot.StringFixed(2),
			}},
		},
	}}
}

func (p *PaypalProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	app := &paypal.ApplicationContext{
		ReturnURL: p.redirects.Success(),
		CancelURL: p.redirects.Cancel(),
	}

	ord, err := p.pp.CreateOrder(ctx, "CAPTURE", p.units(req), nil, app)
	if err != nil {
		if cerr := ctx.Err(); errors.Is(cerr, context.Canceled) {
			return Session{}, cerr
		}
		return Session{}, paypalError(err)
	}

	if ord == nil || ord.ID == "" {
		return Session{}, &ProviderError{
			Provider:  "paypal",
			Temporary: true,
			Err:       errors.New("order without id"),
		}
	}

	s := Session{ID: ord.ID}
	for _, l := range ord.Links {
		if l.Rel == "approve" {
			s.URL = l.Href
			break
		}
	}
	return s, nil
}

func paypalError(err error) error {
	var perr *paypal.ErrorResponse
	if !errors.As(err, &perr) || perr.Response == nil {
		return &ProviderError{Provider: "paypal", Temporary: true, Err: err}
	}

	status := perr.Response.StatusCode
	return &ProviderError{
		Provider:  "paypal",
		Message:   perr.Message,
		Status:    status,
		Temporary: status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
		Err:       err,
	}
}
