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
	"golang.org/x/sync/errgroup"

	"github.com/etherloops/ether-backend/api/controllers"
	"github.com/etherloops/ether-backend/api/routes"
	"github.com/etherloops/ether-backend/internal/checkout"
	"github.com/etherloops/ether-backend/internal/orders"
	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/internal/review"
	"github.com/etherloops/ether-backend/internal/shopper"
	"github.com/etherloops/ether-backend/pkg/config"
	"github.com/etherloops/ether-backend/pkg/db"
	"github.com/etherloops/ether-backend/pkg/instance"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/metrics"
	"github.com/etherloops/ether-backend/pkg/migrate"
	"github.com/etherloops/ether-backend/pkg/outbox"
	"github.com/etherloops/ether-backend/pkg/redis"
	"github.com/etherloops/ether-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"db": dbClient}

	// Sessions fall back to memory when Redis is unavailable outside prod.
	var redisClient *redis.Client
	redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		if cfg.App.IsProd() {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "redis unavailable, sessions will not persist")
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	productRepo := products.NewRepository(dbClient.DB())
	productSvc, err := products.NewService(productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(dbClient.DB()),
		Tx:          dbClient,
		Outbox:      outboxSvc,
		PlatformBPS: cfg.Commission.PlatformBPS,
		Currency:    cfg.Checkout.Currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	reviewSvc, err := review.NewService(review.ServiceParams{
		Products:  productSvc,
		Tx:        dbClient,
		Repo:      review.ProductRepoFactory(productRepo),
		Outbox:    outboxSvc,
		Metrics:   metrics.NewReviewMetrics(reg),
		Logger:    logg,
		Threshold: cfg.Review.SwipeThreshold,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	processor, err := paymentProcessor(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment processor", err)
		os.Exit(1)
	}

	managerParams := shopper.ManagerParams{
		Processor:       processor,
		Orders:          ordersSvc,
		Metrics:         metrics.NewCheckoutMetrics(reg),
		Logger:          logg,
		TTL:             cfg.Session.TTL,
		CheckoutTimeout: cfg.Checkout.ProcessingTimeout,
		Currency:        cfg.Checkout.Currency,
	}
	deps := routes.Dependencies{
		Products:  productSvc,
		Orders:    ordersSvc,
		Review:    reviewSvc,
		Gatherer:  reg,
		Readiness: readiness,
	}
	if redisClient != nil {
		managerParams.Store = redisClient
		deps.Idempotency = redisClient
	}

	sessions, err := shopper.NewManager(managerParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}
	deps.Sessions = sessions

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "api",
		"instance":    instance.GetID(),
		"port":        cfg.App.Port,
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)
		if err := sessions.Close(shutdownCtx); err != nil {
			logg.Error(ctx, "failed to persist sessions on shutdown", err)
		}
		return shutdownErr
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

// paymentProcessor uses Stripe when a key is configured and the simulated
// processor otherwise. Production refuses to start without Stripe.
func paymentProcessor(cfg *config.Config, logg *logger.Logger) (checkout.PaymentProcessor, error) {
	if !cfg.Stripe.Enabled() {
		if cfg.App.IsProd() {
			return nil, errors.New("stripe api key is required in prod")
		}
		logg.Warn(context.Background(), "stripe not configured, using simulated payments")
		return checkout.NewSimulatedProcessor(cfg.Checkout.SimulatedDelay), nil
	}
	client, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	return stripe.NewPaymentIntents(client), nil
}
