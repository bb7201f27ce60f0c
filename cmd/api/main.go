package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/estatehubhq/estatehub-backend/api/routes"
	"github.com/estatehubhq/estatehub-backend/internal/appointments"
	"github.com/estatehubhq/estatehub-backend/internal/billing"
	"github.com/estatehubhq/estatehub-backend/internal/leads"
	"github.com/estatehubhq/estatehub-backend/internal/notifications"
	"github.com/estatehubhq/estatehub-backend/internal/referrals"
	"github.com/estatehubhq/estatehub-backend/internal/stream"
	"github.com/estatehubhq/estatehub-backend/internal/support"
	"github.com/estatehubhq/estatehub-backend/internal/transactions"
	stripewebhook "github.com/estatehubhq/estatehub-backend/internal/webhooks/stripe"
	"github.com/estatehubhq/estatehub-backend/pkg/auth/session"
	"github.com/estatehubhq/estatehub-backend/pkg/config"
	"github.com/estatehubhq/estatehub-backend/pkg/db"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
	"github.com/estatehubhq/estatehub-backend/pkg/metrics"
	"github.com/estatehubhq/estatehub-backend/pkg/migrate"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/redis"
	"github.com/estatehubhq/estatehub-backend/pkg/stripe"
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	hub := stream.NewHub(cfg.Stream, metrics.NewStreamMetrics(prometheus.DefaultRegisterer))

	transactionsService, err := transactions.NewService(transactions.NewRepository(gormDB), dbClient, outboxService, hub)
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions service", err)
		os.Exit(1)
	}

	leadsService, err := leads.NewService(leads.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create leads service", err)
		os.Exit(1)
	}

	appointmentsService, err := appointments.NewService(appointments.NewRepository(gormDB), dbClient, outboxService, transactionsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointments service", err)
		os.Exit(1)
	}

	referralsService, err := referrals.NewService(referrals.NewRepository(gormDB), dbClient, outboxService, cfg.Referrals)
	if err != nil {
		logg.Error(context.Background(), "failed to create referrals service", err)
		os.Exit(1)
	}

	supportService, err := support.NewService(support.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create support service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.NewRepository(gormDB), billing.NewStripeClient(stripeClient), cfg.Stripe)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Billing: billingService,
		Stripe:  stripewebhook.NewStripeFetcher(stripeClient),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookEventTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			leadsService,
			appointmentsService,
			transactionsService,
			referralsService,
			supportService,
			notificationsService,
			billingService,
			hub,
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
