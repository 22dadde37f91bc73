package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lokmanguedri/motivex/internal/config"
	"github.com/lokmanguedri/motivex/internal/fulfillment"
	kafkax "github.com/lokmanguedri/motivex/internal/kafka"
	"github.com/lokmanguedri/motivex/internal/logx"
	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/orders"
	"github.com/lokmanguedri/motivex/internal/postgres"
	"github.com/lokmanguedri/motivex/internal/redisx"
	"github.com/lokmanguedri/motivex/internal/shipping"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logx.New("info", false)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logx.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", cfg.ServiceName+"-worker").Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Status events published by the worker's own order updates.
	pctx, cancelProducer := context.WithCancel(context.Background())
	defer cancelProducer()
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 256, log)
	changed.Start(pctx)

	client, err := shipping.NewClient(shipping.Options{
		Provider: cfg.Shipping.Provider,
		APIID:    cfg.Shipping.APIID,
		APIToken: cfg.Shipping.APIToken,
		BaseURL:  cfg.Shipping.BaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("shipping client")
	}
	m := metrics.New(prometheus.NewRegistry())
	ship := shipping.NewService(client, rdb, shipping.ServiceConfig{
		FromWilaya:  cfg.Shipping.FromWilayaID,
		FallbackFee: cfg.Shipping.FallbackFee,
	}, m, log)

	orderSvc := &orders.Service{
		Store:         &orders.Repo{DB: db},
		Fees:          ship,
		Idem:          orders.RedisIdempotency{Redis: rdb},
		StatusChanged: changed,
		Metrics:       m,
		Log:           log,
		ServiceName:   cfg.ServiceName + "-worker",
	}
	svc := &fulfillment.Service{
		Shipments: &shipping.Shipments{Orders: orderSvc, Carrier: ship, FromWilayaID: cfg.Shipping.FromWilayaID, Redis: rdb, Log: log},
		Redis:     rdb,
		AutoShip:  cfg.AutoShip,
		Log:       log,
	}
	if !cfg.AutoShip {
		log.Warn().Msg("AUTO_SHIP is off; status events are consumed and skipped")
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderStatusChanged, cfg.WorkerCount, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("group", cfg.WorkerGroup).
			Str("topic", orders.TopicOrderStatusChanged).
			Int("workers", cfg.WorkerCount).
			Msg("fulfillment consumer started")
		return cons.Start(gctx, svc.HandleStatusChanged)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}

	log.Info().Msg("shutting down consumer")
	changed.Close()
	changed.WaitClosed()
}
