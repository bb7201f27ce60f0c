package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/estatehubhq/estatehub-backend/api/controllers"
	webhookcontrollers "github.com/estatehubhq/estatehub-backend/api/controllers/webhooks"
	"github.com/estatehubhq/estatehub-backend/api/middleware"
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
	"github.com/estatehubhq/estatehub-backend/pkg/redis"
	"github.com/estatehubhq/estatehub-backend/pkg/stripe"
)

// NewRouter wires the full HTTP surface: public probes, the Stripe webhook,
// the authenticated buyer/seller/agent API, and the admin console routes.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	leadsService leads.Service,
	appointmentsService appointments.Service,
	transactionsService transactions.Service,
	referralsService referrals.Service,
	supportService support.Service,
	notificationsService notifications.Service,
	billingService billing.Service,
	hub *stream.Hub,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.AuthRateLimit.Window,
		cfg.AuthRateLimit.IPLimit,
		cfg.AuthRateLimit.UserLimit,
	)

	var idempotencyStore redis.IdempotencyStore
	var limiterStore middleware.RateLimiterStore
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, controllers.ReadinessPingers(map[string]func(ctx context.Context) error{
			"database": pingFunc(dbP),
			"redis":    pingFunc(redisClient),
		})))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Use(middleware.RateLimit(apiPolicy, limiterStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/leads", func(r chi.Router) {
			r.Post("/", controllers.CreateLead(leadsService, logg))
			r.Get("/", controllers.ListLeads(leadsService, logg))
			r.Get("/{leadID}", controllers.GetLead(leadsService, logg))
			r.Put("/{leadID}/status", controllers.UpdateLeadStatus(leadsService, logg))
		})

		r.Route("/v1/appointments", func(r chi.Router) {
			r.Post("/", controllers.ScheduleAppointment(appointmentsService, logg))
			r.Get("/", controllers.ListAppointments(appointmentsService, logg))
			r.Get("/{appointmentID}", controllers.GetAppointment(appointmentsService, logg))
			r.Put("/{appointmentID}/status", controllers.UpdateAppointmentStatus(appointmentsService, logg))
		})

		r.Route("/v1/transactions", func(r chi.Router) {
			r.Post("/", controllers.OpenTransaction(transactionsService, logg))
			r.Get("/{transactionID}", controllers.GetTransaction(transactionsService, logg))
			r.Get("/{transactionID}/progress", controllers.GetTransactionProgress(transactionsService, logg))
			r.Post("/{transactionID}/advance", controllers.AdvanceTransaction(transactionsService, logg))
			r.Post("/{transactionID}/cancel", controllers.CancelTransaction(transactionsService, logg))
			r.Post("/{transactionID}/notifications/{notificationID}/read", controllers.MarkTransactionNotificationRead(transactionsService, logg))
		})

		r.Route("/v1/referrals", func(r chi.Router) {
			r.Post("/generate-link", controllers.GenerateReferralLink(referralsService, logg))
			r.Post("/invite", controllers.InviteReferral(referralsService, logg))
			r.Post("/complete", controllers.CompleteReferral(referralsService, logg))
			r.Get("/stats", controllers.ReferralStats(referralsService, logg))
			r.Get("/leaderboard", controllers.ReferralLeaderboard(referralsService, logg))
		})

		r.Route("/v1/support", func(r chi.Router) {
			r.Route("/tickets", func(r chi.Router) {
				r.Post("/", controllers.CreateSupportTicket(supportService, logg))
				r.Get("/", controllers.ListSupportTickets(supportService, logg))
				r.Get("/{ticketID}", controllers.GetSupportTicket(supportService, logg))
				r.Post("/{ticketID}/messages", controllers.PostSupportMessage(supportService, logg))
				r.Put("/{ticketID}/status", controllers.UpdateSupportTicketStatus(supportService, logg))
			})
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/v1/billing", func(r chi.Router) {
			r.Post("/checkout-session", controllers.CreateCheckoutSession(billingService, logg))
			r.Get("/subscription", controllers.GetSubscription(billingService, logg))
		})

		// Legacy path kept for older web clients.
		r.Post("/stripe/create-checkout-session", controllers.CreateCheckoutSession(billingService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Use(middleware.RateLimit(apiPolicy, limiterStore, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/transactions", func(r chi.Router) {
			r.Get("/stream", controllers.StreamTransactions(hub, cfg.Stream.HeartbeatInterval, logg))
			r.Get("/{transactionID}", controllers.AdminGetTransaction(transactionsService, logg))
		})
	})

	return r
}

type contextPinger interface {
	Ping(ctx context.Context) error
}

func pingFunc(p contextPinger) func(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.Ping
}
