package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SajivJess/Wally/internal/service"
	"github.com/SajivJess/Wally/pkg/health"
	"github.com/SajivJess/Wally/pkg/middleware"
)

// feedMaxAge is the Cache-Control max-age for endpoints serving static feeds.
const feedMaxAge = 300

// Services bundles the application services exposed over HTTP.
type Services struct {
	Cart            *service.CartService
	Checkout        *service.CheckoutService
	Users           *service.UserService
	Products        *service.ProductService
	Missions        *service.MissionService
	MealPlans       *service.MealPlanService
	Recommendations *service.RecommendationService
}

// RouterConfig carries the transport settings for NewRouter.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig
	PprofCIDRs  []string
	// RateLimit guards the /api routes when set.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter creates a chi router with all Wally API routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(svcs.Cart, svcs.Checkout, logger)
	userHandler := NewUserHandler(svcs.Users, logger)
	productHandler := NewProductHandler(svcs.Products, logger)
	missionHandler := NewMissionHandler(svcs.Missions, logger)
	mealPlanHandler := NewMealPlanHandler(svcs.MealPlans, logger)
	recHandler := NewRecommendationHandler(svcs.Recommendations, logger)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		r.Use(ContentTypeJSON)

		r.Get("/", rootHandler)
		r.Get("/health", serviceHealthHandler(cfg.ServiceName))

		r.Route("/cart/{user_id}", func(r chi.Router) {
			r.Use(middleware.UserScope("user_id"))

			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{item_id}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{item_id}", cartHandler.RemoveItem)
			r.Delete("/clear", cartHandler.ClearCart)
			r.Post("/checkout", cartHandler.Checkout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.UserScope("id"))

				r.Get("/", userHandler.GetUser)
				r.Get("/profile", userHandler.GetProfile)
				r.Put("/points", userHandler.UpdatePoints)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Post("/", productHandler.CreateProduct)
			r.Get("/trending/location", productHandler.Trending)
			r.With(middleware.CacheControl(feedMaxAge)).Get("/search/visual", productHandler.VisualSearch)

			r.Get("/bundles/", productHandler.ListBundles)
			r.Post("/bundles/", productHandler.CreateBundle)
			r.Get("/bundles/{id}", productHandler.GetBundle)

			r.Get("/{id}", productHandler.GetProduct)
		})

		r.Route("/missions", func(r chi.Router) {
			r.Get("/", missionHandler.ListMissions)
			r.Post("/", missionHandler.CreateMission)
			r.Post("/roulette/spin", missionHandler.SpinRoulette)
			r.With(middleware.UserScope("user_id")).Get("/user/{user_id}/progress", missionHandler.UserProgress)
			r.Get("/{id}", missionHandler.GetMission)
			r.Put("/{id}/progress", missionHandler.UpdateProgress)
		})

		r.Route("/meal-plans", func(r chi.Router) {
			r.Get("/", mealPlanHandler.ListMealPlans)
			r.Post("/", mealPlanHandler.CreateMealPlan)
			r.Get("/goals/available", mealPlanHandler.AvailableGoals)
			r.Get("/goal/{goal_type}", mealPlanHandler.GetByGoal)
			r.Get("/ingredients/{goal_type}", mealPlanHandler.Ingredients)
			r.Get("/{id}", mealPlanHandler.GetMealPlan)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/smart-tips", recHandler.SmartTips)
			r.Post("/smart-tips", recHandler.CreateSmartTip)
			r.With(middleware.UserScope("user_id")).Get("/refill-alerts/{user_id}", recHandler.RefillAlerts)
			r.Post("/refill-alerts", recHandler.CreateRefillAlert)

			r.Group(func(r chi.Router) {
				r.Use(middleware.CacheControl(feedMaxAge))
				r.Get("/exclusive-drops", recHandler.ExclusiveDrops)
				r.With(middleware.UserScope("user_id")).Get("/personalized/{user_id}", recHandler.Personalized)
			})
		})
	})

	return r
}
