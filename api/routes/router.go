package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zimmerhq/zimmer-admin-api/api/controllers"
	"github.com/zimmerhq/zimmer-admin-api/api/middleware"
	"github.com/zimmerhq/zimmer-admin-api/internal/adjustments"
	"github.com/zimmerhq/zimmer-admin-api/internal/auth"
	"github.com/zimmerhq/zimmer-admin-api/internal/automations"
	"github.com/zimmerhq/zimmer-admin-api/internal/payments"
	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/internal/users"
	"github.com/zimmerhq/zimmer-admin-api/pkg/auth/session"
	"github.com/zimmerhq/zimmer-admin-api/pkg/config"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
	"github.com/zimmerhq/zimmer-admin-api/pkg/metrics"
	"github.com/zimmerhq/zimmer-admin-api/pkg/redis"
)

// Services bundles everything the router exposes over HTTP.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Automations   automations.Service
	Subscriptions subscriptions.Service
	Payments      payments.Service
	Ledger        adjustments.Service
}

// Deps carries the infrastructure the middleware chain needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Redis       *redis.Client
	Sessions    session.AccessSessionChecker
	DB          controllers.Pinger
	HTTPMetrics *metrics.HTTPMetrics
}

// NewRouter assembles the admin API.
func NewRouter(deps Deps, svcs Services) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
				Post("/login", controllers.AuthLogin(svcs.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Post("/logout", controllers.AuthLogout(svcs.Auth, logg))
				// Production environments provision admin accounts out of
				// band; self-serve registration stays off there.
				if !cfg.App.IsProd() {
					r.With(middleware.RequireRole(logg, string(enums.AdminRoleAdmin))).
						With(middleware.Idempotency(deps.Redis, logg)).
						Post("/register", controllers.AuthRegister(svcs.Auth, logg))
				}
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(logg, string(enums.AdminRoleAdmin), string(enums.AdminRoleManager)))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			pageSize := cfg.Ledger.DefaultPageSize

			r.Route("/users", func(r chi.Router) {
				r.Post("/", controllers.UsersCreate(svcs.Users, logg))
				r.Get("/", controllers.UsersList(svcs.Users, logg, pageSize))
				r.Get("/{userID}", controllers.UsersGet(svcs.Users, logg))
				r.Patch("/{userID}", controllers.UsersUpdate(svcs.Users, logg))
				r.Put("/{userID}/active", controllers.UsersSetActive(svcs.Users, logg))
				r.Get("/{userID}/subscriptions", controllers.SubscriptionsListByUser(svcs.Subscriptions, logg))
			})

			r.Route("/automations", func(r chi.Router) {
				r.Post("/", controllers.AutomationsCreate(svcs.Automations, logg))
				r.Get("/", controllers.AutomationsList(svcs.Automations, logg, pageSize))
				r.Get("/{automationID}", controllers.AutomationsGet(svcs.Automations, logg))
				r.Patch("/{automationID}", controllers.AutomationsUpdate(svcs.Automations, logg))
			})

			r.Route("/user-automations", func(r chi.Router) {
				r.Post("/", controllers.SubscriptionsCreate(svcs.Subscriptions, logg))
				r.Get("/{userAutomationID}", controllers.SubscriptionsGet(svcs.Subscriptions, logg))
				r.Put("/{userAutomationID}/status", controllers.SubscriptionsSetStatus(svcs.Subscriptions, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", controllers.PaymentsCreate(svcs.Payments, logg))
				r.Get("/", controllers.PaymentsList(svcs.Payments, logg, pageSize))
				r.Get("/{paymentID}", controllers.PaymentsGet(svcs.Payments, logg))
				r.Post("/{paymentID}/paid", controllers.PaymentsMarkPaid(svcs.Payments, logg))
				r.Post("/{paymentID}/failed", controllers.PaymentsMarkFailed(svcs.Payments, logg))
			})

			r.Route("/tokens", func(r chi.Router) {
				// Writes require the admin role; managers hold read access.
				r.With(middleware.RequireRole(logg, string(enums.AdminRoleAdmin))).
					Post("/adjust", controllers.TokensAdjust(svcs.Ledger, logg))
				r.Get("/adjustments", controllers.TokensList(svcs.Ledger, logg, pageSize))
				r.Get("/balance/{userAutomationID}", controllers.TokensBalance(svcs.Ledger, logg))
			})
		})
	})

	return r
}
