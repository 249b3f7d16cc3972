package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/homechef-backend/api/controllers"
	"github.com/angelmondragon/homechef-backend/api/middleware"
	"github.com/angelmondragon/homechef-backend/internal/auth"
	"github.com/angelmondragon/homechef-backend/internal/cart"
	"github.com/angelmondragon/homechef-backend/internal/dispatch"
	"github.com/angelmondragon/homechef-backend/internal/foods"
	"github.com/angelmondragon/homechef-backend/internal/orders"
	"github.com/angelmondragon/homechef-backend/internal/riders"
	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/auth/session"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/enums"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/homechef-backend/pkg/redis"
)

// Cache is the redis surface used by the router: readiness, rate limiting and
// idempotency replay.
type Cache interface {
	controllers.Pinger
	pkgredis.IdempotencyStore
	middleware.WindowLimiter
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth     auth.Service
	Register auth.RegisterService
	Users    users.Service
	Foods    foods.Service
	Cart     cart.Service
	Dispatch dispatch.Service
	Orders   orders.Service
	Riders   riders.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache Cache,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	rl := cfg.AuthRateLimit
	loginPolicy := middleware.ThrottlePolicy{Name: "login", Window: rl.LoginWindow, PerIP: rl.LoginIPLimit, PerEmail: rl.LoginEmailLimit}
	signupPolicy := middleware.ThrottlePolicy{Name: "signup", Window: rl.SignupWindow, PerIP: rl.SignupIPLimit, PerEmail: rl.SignupEmailLimit}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(cache, logg))
		r.With(middleware.Throttle(signupPolicy, cache, logg)).Post("/signup", controllers.AuthSignUp(svc.Register, logg))
		r.With(middleware.Throttle(loginPolicy, cache, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svc.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Get("/users/me", controllers.UserProfile(svc.Users, logg))
		r.Put("/users/me", controllers.UserUpdateProfile(svc.Users, logg))

		r.Get("/foods", controllers.FoodsList(svc.Foods, logg))
		r.Get("/foods/area", controllers.FoodsForArea(svc.Foods, logg))

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSeller))
			r.Post("/foods", controllers.SellerCreateFood(svc.Foods, logg))
			r.Get("/foods", controllers.SellerListFoods(svc.Foods, logg))
			r.Put("/foods/{foodId}", controllers.SellerUpdateFood(svc.Foods, logg))
			r.Get("/foods/{foodId}/orders", controllers.SellerFoodOrders(svc.Foods, svc.Orders, logg))
			r.Post("/order-items/{orderItemId}/assign-rider", controllers.SellerAssignRider(svc.Dispatch, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))
			r.Get("/", controllers.CartList(svc.Cart, logg))
			r.Post("/", controllers.CartAdd(svc.Cart, logg))
			r.Post("/confirm-all", controllers.CartConfirmAll(svc.Cart, logg))
			r.Patch("/{itemId}", controllers.CartUpdateQuantity(svc.Cart, logg))
			r.Delete("/{itemId}", controllers.CartRemove(svc.Cart, logg))
			r.Post("/{itemId}/confirm", controllers.CartConfirm(svc.Cart, logg))
		})

		r.Route("/rider", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleRider))
			r.Get("/orders", controllers.RiderOrders(svc.Orders, logg))
			r.Post("/order-items/{orderItemId}/deliver", controllers.RiderDeliver(svc.Orders, logg))
			r.Put("/status", controllers.RiderSetStatus(svc.Riders, logg))
		})
	})

	return r
}
