package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/83west/storefront/api/web"
	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	mock "github.com/stripe/stripe-mock/param"
)

var sessionSeq int64

// expectedLine is what a provider should receive for one cart line.
type expectedLine struct {
	name     string
	amount   int64
	quantity int
}

type mockPaypal struct {
	mu           sync.Mutex
	expectedCart []expectedLine
	reference    string
}

func newPaypalClient(url string) (*paypal.Client, error) {
	return paypal.NewClient("client-e2e", "secret-e2e", url)
}

func (m *mockPaypal) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units[0].Items) != len(m.expectedCart) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		tot := decimal.Zero
		for _, l := range m.expectedCart {
			tot = tot.Add(decimal.New(l.amount*int64(l.quantity), -2))
		}

		if pu.Units[0].Amount.Value != tot.StringFixed(2) {
			web.Respond(context.Background(), w, map[string]string{"message": "amount mismatch"}, 422)
			return
		}
		m.reference = pu.Units[0].ReferenceID

		id := fmt.Sprintf("PAYPAL-%d", atomic.AddInt64(&sessionSeq, 1))
		ord := paypal.Order{
			ID:     id,
			Status: "CREATED",
			Links:  []paypal.Link{{Href: "https://www.paypal.test/checkoutnow?token=" + id, Rel: "approve", Method: "GET"}},
		}
		web.Respond(context.Background(), w, ord, 201)
	})

	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := map[string]any{"access_token": "A21AAtest", "token_type": "Bearer", "expires_in": 32400}
		web.Respond(context.Background(), w, tok, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	return r
}

type mockStripe struct {
	mu           sync.Mutex
	expectedCart []expectedLine
	reference    string
	decline      string
	calls        int
}

func (m *mockStripe) expect(lines []expectedLine, decline string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedCart, m.decline, m.calls, m.reference = lines, decline, 0, ""
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.calls++

		if m.decline != "" {
			web.Respond(context.Background(), w, map[string]any{"error": map[string]any{
				"type":    "card_error",
				"code":    "card_declined",
				"message": m.decline,
			}}, http.StatusPaymentRequired)
			return
		}

		params, _ := mock.ParseParams(r)
		lines := params["line_items"].(map[string]any)

		if len(lines) != len(m.expectedCart) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		for i, exp := range m.expectedCart {
			it := lines[strconv.Itoa(i)].(map[string]any)

			if it["quantity"] != strconv.Itoa(exp.quantity) {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			pd := it["price_data"].(map[string]any)
			amount, err := strconv.ParseInt(pd["unit_amount"].(string), 10, 64)
			if err != nil || amount != exp.amount {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			name := pd["product_data"].(map[string]any)["name"]
			if name != exp.name {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
		}

		if ref, ok := params["client_reference_id"].(string); ok {
			m.reference = ref
		}

		id := fmt.Sprintf("cs_test_%d", atomic.AddInt64(&sessionSeq, 1))
		sess := map[string]any{
			"id":     id,
			"object": "checkout.session",
			"url":    "https://checkout.stripe.test/c/pay/" + id,
		}
		web.Respond(context.Background(), w, sess, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}
