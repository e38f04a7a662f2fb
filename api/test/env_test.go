package test

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/83west/storefront/api"
	"github.com/83west/storefront/client"
	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/core/checkout"
	"github.com/83west/storefront/core/product"
	"github.com/83west/storefront/rate"
	"github.com/83west/storefront/storage/memory"
	"github.com/sirupsen/logrus"
)

const catalogJSON = `[
  {"id": 1, "name": "Submariner", "model": "16610", "price": 9500, "images": ["/DSC_3715", "/DSC_3716"], "description": "Date, 1998", "available": true},
  {"id": 2, "name": "Daytona", "model": "116520", "price": 1250.5, "images": ["/DSC_4001"], "description": "Panda dial", "available": true},
  {"id": 3, "name": "GMT-Master II", "model": "16710", "price": 8000, "images": [], "description": "Pepsi bezel", "available": false}
]`

const webhookSecret = "whsec_e2e"

type TestEnv struct {
	*httptest.Server
	Client   *client.Client
	Persist  *memory.Persister
	Stripe   *mockStripe
	Paypal   *mockPaypal
	Registry *cart.Registry
}

type envOptions struct {
	provider string
	limiter  *rate.Limiter
}

func NewTestEnv(t *testing.T, opts envOptions) *TestEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	env := &TestEnv{
		Persist: memory.New(),
		Stripe:  &mockStripe{},
		Paypal:  &mockPaypal{},
	}
	env.Registry = cart.NewRegistry(env.Persist, log, 0)

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)
	paypalSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(paypalSrv.Close)

	redirects := checkout.Redirects{Base: "https://83west.example"}

	var provider checkout.Provider
	var secret string
	pub := checkout.PublicConfig{Provider: opts.provider}
	switch opts.provider {
	case "paypal":
		pp, err := newPaypalClient(paypalSrv.URL)
		if err != nil {
			t.Fatal(err)
		}
		provider = checkout.NewPaypalProvider(pp, "usd", redirects)
	default:
		pub.Provider = "stripe"
		pub.PublishableKey = "pk_test_e2e"
		strp := checkout.NewStripeAPI(checkout.StripeConfig{SecretKey: "sk_test_e2e", URL: stripeSrv.URL}, log)
		provider = checkout.NewStripeProvider(strp, "usd", redirects)
		secret = webhookSecret
	}

	mux := api.APIMux(api.APIConfig{
		Log:           log,
		Catalog:       product.FileSource{Path: path},
		Registry:      env.Registry,
		Provider:      checkout.NewBreaker(provider, checkout.BreakerConfig{Name: "e2e", Timeout: time.Minute}, log),
		Public:        pub,
		WebhookSecret: secret,
		Limiter:       opts.limiter,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)

	env.Client = client.NewWithHTTP(env.Server.URL, env.Server.Client())
	return env
}
