package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lokmanguedri/motivex/internal/auth"
	"github.com/lokmanguedri/motivex/internal/cart"
	"github.com/lokmanguedri/motivex/internal/catalog"
	"github.com/lokmanguedri/motivex/internal/config"
	"github.com/lokmanguedri/motivex/internal/httpx"
	kafkax "github.com/lokmanguedri/motivex/internal/kafka"
	"github.com/lokmanguedri/motivex/internal/logx"
	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/postgres"
	"github.com/lokmanguedri/motivex/internal/ratelimit"
	"github.com/lokmanguedri/motivex/internal/redisx"
	"github.com/lokmanguedri/motivex/internal/shipping"
	"github.com/lokmanguedri/motivex/internal/storage"
	"github.com/lokmanguedri/motivex/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logx.New("info", false)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logx.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", cfg.ServiceName).Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
	log.Info().Msg("api stopped")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// DB
	if err := postgres.Migrate(cfg.PostgresDSN, true); err != nil {
		return err
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Kafka producers run on their own context so queued events still flush
	// after the signal.
	pctx, cancelProducers := context.WithCancel(context.Background())
	defer cancelProducers()
	created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	created.Start(pctx)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	changed.Start(pctx)

	// Shipping
	client, err := shipping.NewClient(shipping.Options{
		Provider: cfg.Shipping.Provider,
		APIID:    cfg.Shipping.APIID,
		APIToken: cfg.Shipping.APIToken,
		BaseURL:  cfg.Shipping.BaseURL,
	})
	if err != nil {
		return err
	}
	ship := shipping.NewService(client, rdb, shipping.ServiceConfig{
		FromWilaya:  cfg.Shipping.FromWilayaID,
		FallbackFee: cfg.Shipping.FallbackFee,
	}, m, log)

	// Domain
	catalogRepo := &catalog.Repo{DB: db}
	userSvc := &users.Service{Store: &users.Repo{DB: db}}
	orderSvc := &orders.Service{
		Store:         &orders.Repo{DB: db},
		Fees:          ship,
		Idem:          orders.RedisIdempotency{Redis: rdb},
		Created:       created,
		StatusChanged: changed,
		Metrics:       m,
		Log:           log,
		ServiceName:   cfg.ServiceName,
	}
	shipments := &shipping.Shipments{Orders: orderSvc, Carrier: ship, FromWilayaID: cfg.Shipping.FromWilayaID, Redis: rdb, Log: log}
	webhooks := &shipping.Webhooks{Orders: orderSvc, Redis: rdb, Metrics: m, Log: log}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)

	limiter, stopLimiter := newLimiter(cfg, rdb, log)
	defer stopLimiter()

	uploads, err := storage.NewLocal(cfg.UploadDir, cfg.UploadBaseURL, cfg.UploadMaxBytes)
	if err != nil {
		return err
	}

	router := httpx.NewRouter(httpx.Handlers{
		Catalog:  &httpx.CatalogHandler{Store: catalogRepo, Uploads: uploads, MaxUpload: cfg.UploadMaxBytes, Log: log},
		Cart:     &httpx.CartHandler{Store: &cart.Store{Redis: rdb}, Quoter: &cart.Quoter{Catalog: catalogRepo}, Log: log},
		Orders:   &httpx.OrdersHandler{Orders: orderSvc, Shipments: shipments, Limiter: limiter, Log: log},
		Shipping: &httpx.ShippingHandler{Lookup: ship, Webhooks: webhooks, WebhookSecret: cfg.Shipping.WebhookSecret, Metrics: m, Log: log},
		Auth:     &httpx.AuthHandler{Users: userSvc, Tokens: issuer, Log: log},
		Tokens:   issuer,
		Files:    uploads.Handler(),
		Ping:     db.Ping,
		Metrics:  m,
		Log:      log,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	// close inbox, flush, then wait for the writer loop
	created.Close()
	changed.Close()
	created.WaitClosed()
	changed.WaitClosed()
	return err
}

// newLimiter picks the checkout limiter backend.
func newLimiter(cfg config.Config, rdb redis.Cmdable, log zerolog.Logger) (ratelimit.Limiter, func()) {
	rc := ratelimit.Config{Scope: "checkout", Limit: cfg.OrderRateLimit, Window: cfg.OrderRateWindow}
	if cfg.RateLimitBackend == "redis" {
		return ratelimit.NewRedis(rdb, rc, log), func() {}
	}
	mem := ratelimit.NewMemory(rc)
	return mem, mem.Stop
}
