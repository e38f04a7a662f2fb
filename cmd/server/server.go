package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/83west/storefront/api"
	"github.com/83west/storefront/config"
	"github.com/83west/storefront/core/cart"
	"github.com/83west/storefront/core/checkout"
	"github.com/83west/storefront/core/product"
	"github.com/83west/storefront/rate"
	"github.com/83west/storefront/storage/file"
	"github.com/83west/storefront/storage/memory"
	"github.com/83west/storefront/storage/postgres"
	"github.com/83west/storefront/storage/redis"
	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	// A missing .env is fine; the environment alone is enough.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	const prefix = "STOREFRONT"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if err := setupLogger(logger, cfg.Log); err != nil {
		return err
	}

	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	logger.Infof("config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	persister, closePersister, err := openPersister(ctx, cfg.Cart, logger)
	if err != nil {
		return err
	}
	defer closePersister.Close()

	provider, pub, err := openProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Expiry, rate.Every(cfg.Rate.Every))
	defer limiter.Stop()

	registry := cart.NewRegistry(persister, logger, cfg.Cart.IdleExpiry)
	defer registry.Stop()

	var webhookSecret string
	if pub.Provider == "stripe" {
		webhookSecret = cfg.Stripe.WebhookSecret
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		Catalog:       product.NewSource(cfg.Catalog.Location, cfg.Catalog.Timeout),
		Registry:      registry,
		Provider:      provider,
		Public:        pub,
		WebhookSecret: webhookSecret,
		Limiter:       limiter,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

func setupLogger(logger *logrus.Logger, cfg config.Log) error {
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger.SetLevel(lvl)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openPersister builds the cart backend named in cfg. The returned closer
// releases its connections.
func openPersister(ctx context.Context, cfg config.Cart, logger logrus.FieldLogger) (cart.Persister, io.Closer, error) {
	logger.Infof("cart backend: %s", cfg.Backend)

	switch cfg.Backend {
	case "memory":
		return memory.New(), nopCloser{}, nil

	case "file":
		p, err := file.New(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening cart directory: %w", err)
		}
		return p, nopCloser{}, nil

	case "redis":
		client, err := redis.Connect(ctx, redis.Config{
			URL:          cfg.RedisURL,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
			DialTimeout:  cfg.RedisDialTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return redis.New(client), client, nil

	case "postgres":
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrating db: %w", err)
		}
		return postgres.New(db), db, nil
	}

	return nil, nil, fmt.Errorf("unknown cart backend %q", cfg.Backend)
}

// openProvider builds the payment provider named in cfg behind a circuit
// breaker, together with what clients may know about it.
func openProvider(ctx context.Context, cfg config.Config, logger *logrus.Logger) (checkout.Provider, checkout.PublicConfig, error) {
	redirects := checkout.Redirects{Base: cfg.Checkout.BaseURL}
	breaker := checkout.BreakerConfig{
		Name:        cfg.Checkout.Provider,
		Failures:    cfg.Breaker.Failures,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
	}

	var next checkout.Provider
	pub := checkout.PublicConfig{Provider: cfg.Checkout.Provider}

	switch cfg.Checkout.Provider {
	case "stripe":
		if cfg.Stripe.SecretKey == "" {
			return nil, pub, errors.New("stripe secret key is not configured")
		}
		if cfg.Stripe.WebhookSecret == "" {
			return nil, pub, errors.New("stripe webhook secret is not configured")
		}
		strp := checkout.NewStripeAPI(checkout.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			URL:       cfg.Stripe.URL,
		}, logger)
		next = checkout.NewStripeProvider(strp, cfg.Checkout.Currency, redirects)
		pub.PublishableKey = cfg.Stripe.PublishableKey

	case "paypal":
		pp, err := paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return nil, pub, fmt.Errorf("failed to build the paypal client: %w", err)
		}
		if _, err = pp.GetAccessToken(ctx); err != nil {
			return nil, pub, fmt.Errorf("failed to get the first paypal access token: %w", err)
		}
		next = checkout.NewPaypalProvider(pp, cfg.Checkout.Currency, redirects)
		pub.PublishableKey = cfg.Paypal.ClientID

	default:
		return nil, pub, fmt.Errorf("unknown checkout provider %q", cfg.Checkout.Provider)
	}

	return checkout.NewBreaker(next, breaker, logger), pub, nil
}
