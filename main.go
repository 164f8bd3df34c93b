package main

// GET    /health
// GET    /metrics
// GET    /categories, POST /categories, GET|PUT|DELETE /categories/{id}
// GET    /products, POST /products, GET /products/{id}, PUT /products/{id}/price
// GET    /cart, DELETE /cart, POST|PUT /cart/products/{id}
// POST   /orders - checkout the caller's cart
// GET    /orders/{id}

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Ptunda/easy-shop/cache"
	"github.com/Ptunda/easy-shop/config"
	"github.com/Ptunda/easy-shop/events"
	"github.com/Ptunda/easy-shop/handler"
	"github.com/Ptunda/easy-shop/metrics"
	"github.com/Ptunda/easy-shop/service"
	"github.com/Ptunda/easy-shop/store"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:   "easy-shop",
		Usage:  "e-commerce backend",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrateUp,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("easy-shop failed")
	}
}

func setup() (*config.Config, *store.SQLStore, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	st, err := store.NewSQLStore(&store.Credentials{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func migrateUp(_ *cli.Context) error {
	_, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return err
	}
	log.Info("Database migrations executed successfully")
	return nil
}

func serve(_ *cli.Context) error {
	cfg, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	opts := []service.CheckoutOption{service.WithObserver(m)}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, service.WithCartCache(cache.NewRedisCache(rdb, cfg.CartCacheTTL)))
		log.WithFields(log.Fields{"addr": cfg.RedisAddr}).Info("Cart cache enabled")
	}

	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		pub := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		defer pub.Close()
		opts = append(opts, service.WithDispatcher(pub))
		log.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("Order events enabled")
	}

	svc := service.NewService(st, opts...)
	h := handler.NewHandler(svc, handler.HeaderResolver{Header: cfg.UserHeader})

	r := handler.Router(h, m)
	r.Handle("/metrics", metrics.Handler(reg)).Methods(http.MethodGet)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()
	log.WithFields(log.Fields{"addr": cfg.HTTPAddr, "driver": cfg.DBDriver}).Info("Server running")

	waitForKillSignal()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func waitForKillSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	switch <-ch {
	case os.Interrupt:
		log.Info("Got SIGINT...")
	case syscall.SIGTERM:
		log.Info("Got SIGTERM...")
	}
}
