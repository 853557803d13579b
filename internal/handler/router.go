package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cleanearth/cleanearth-bff-go/internal/config"
	"github.com/cleanearth/cleanearth-bff-go/internal/domain"
	"github.com/cleanearth/cleanearth-bff-go/internal/infra/observability"
	"github.com/cleanearth/cleanearth-bff-go/internal/port"
	"github.com/cleanearth/cleanearth-bff-go/internal/service"
	"github.com/cleanearth/cleanearth-bff-go/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Sessions  *session.Manager
	Auth      *service.AuthService
	Dashboard *service.DashboardService
	Booking   *service.BookingService
	Wallet    *service.WalletService
	Recycling *service.RecyclingService
	Guide     *service.GuideService

	// Raw stores, used only by the dev helpers.
	Profiles     port.ProfileStore
	Transactions port.TransactionStore

	// Ready reports whether the backing store is reachable.
	Ready func() bool
}

// NewRouter builds the HTTP surface: ops endpoints, the versioned API
// and the guarded web shell routes.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(metricsMiddleware(deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.HTTPTimeout))
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Ops
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	requireAuth := JWTAuthMiddleware(deps.Auth, deps.Sessions, logger)
	optionalAuth := OptionalAuthMiddleware(deps.Auth, deps.Sessions, logger)
	authRate := RateLimitMiddleware(rate.Limit(float64(cfg.AuthRatePerMinute)/60.0), cfg.AuthRatePerMinute)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRate)
			r.Post("/register", registerHandler(deps.Auth, logger))
			r.Post("/login", loginHandler(deps.Auth, logger))
			r.Post("/refresh", refreshHandler(deps.Auth, logger))
			r.With(requireAuth).Post("/logout", logoutHandler(deps.Auth, logger))
		})

		r.With(optionalAuth).Get("/session", sessionHandler(deps.Sessions, logger))
		r.Get("/guide", guideHandler(deps.Guide))
		r.Get("/metrics/ops", opsHandler(deps.Metrics))

		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(RequireRole(domain.RoleUser))
			r.Get("/dashboard", userDashboardHandler(deps.Dashboard, logger))
			r.Get("/pickups", listPickupsHandler(deps.Booking, cfg.UpcomingPickupsLimit))
			r.Post("/pickups", bookPickupHandler(deps.Booking, logger))
			r.Get("/impact", impactHandler(deps.Guide, logger))
			r.Post("/recyclables", uploadRecyclableHandler(deps.Recycling, logger))
			r.Get("/recyclables", recyclingHistoryHandler(deps.Recycling, 20, logger))
		})

		r.Route("/collector", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(RequireRole(domain.RoleCollector))
			r.Get("/dashboard", collectorDashboardHandler(deps.Dashboard, logger))
			r.Get("/pickups", listPickupsHandler(deps.Booking, cfg.CollectorPickupsLimit))
			r.Post("/pickups", bookPickupHandler(deps.Booking, logger))
			r.Post("/pickups/{pickupID}/start", startPickupHandler(deps.Booking, logger))
			r.Get("/transactions", listTransactionsHandler(deps.Wallet, cfg.RecentTransactionsLimit))
			r.Post("/withdrawals", withdrawHandler(deps.Wallet, logger))
			r.Post("/recyclables", uploadRecyclableHandler(deps.Recycling, logger))
			r.Get("/recyclables", recyclingHistoryHandler(deps.Recycling, 20, logger))
		})

		if cfg.DevMode {
			r.Route("/dev", func(r chi.Router) {
				r.Post("/add-balance", devAddBalanceHandler(deps.Profiles, logger))
				r.Post("/seed-transactions", devSeedTransactionsHandler(deps.Transactions, logger))
			})
		}
	})

	// Web shell routes, one guard evaluation per navigation.
	web := func(class session.RouteClass, role domain.RoleKind, page string) http.HandlerFunc {
		return webRouteHandler(deps.Auth, deps.Sessions, class, role, page, logger)
	}
	r.Get("/", web(session.RoutePublic, "", "landing"))
	r.Get("/login", web(session.RouteAuthEntry, "", "login"))
	r.Get("/register", web(session.RouteAuthEntry, "", "register"))
	r.Get("/user/dashboard", web(session.RouteRoleScoped, domain.RoleUser, "user-dashboard"))
	r.Get("/collector/dashboard", web(session.RouteRoleScoped, domain.RoleCollector, "collector-dashboard"))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return r
}

func opsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, metrics.OpsSnapshot())
	}
}

func metricsMiddleware(metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			metrics.IncrRequest(strconv.Itoa(ww.Status()))
			metrics.RecordRequestDuration(r.Method+" "+route, time.Since(start))
		})
	}
}
