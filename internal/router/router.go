package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/handler/account"
	"github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	promHandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/handler/rbac"
	"github.com/jwalitptl/clinic-api/internal/handler/user"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// ProtectedHandler registers routes that need an authenticated actor.
type ProtectedHandler interface {
	RegisterRoutes(gin.IRouter, handler.PermissionGuard)
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	authH        *authHandler.Handler
	accountH     *account.Handler
	appointmentH *appointment.Handler
	userH        *user.Handler
	rbacH        *rbac.Handler
	healthH      *health.Handler
	metricsH     *promHandler.Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	// TraceService enables otelgin spans under this service name.
	TraceService string
}

type Handlers struct {
	Auth        *authHandler.Handler
	Account     *account.Handler
	Appointment *appointment.Handler
	User        *user.Handler
	RBAC        *rbac.Handler
	Health      *health.Handler
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	if config.TraceService != "" {
		engine.Use(otelgin.Middleware(config.TraceService))
	}

	r := &Router{
		engine:       engine,
		auth:         auth,
		authH:        h.Auth,
		accountH:     h.Account,
		appointmentH: h.Appointment,
		userH:        h.User,
		rbacH:        h.RBAC,
		healthH:      h.Health,
		metricsH:     promHandler.New(config.Gatherer),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Metrics(config.Metrics),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	if len(config.AllowedOrigins) > 0 {
		engine.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: config.AllowedOrigins,
			MaxAge:       600,
		}))
	}

	if config.RateEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.metricsH.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
		middleware.Cache(middleware.NoStoreConfig()),
		func(c *gin.Context) {
			c.Header("X-API-Version", "1.0")
			c.Next()
		},
	)

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.accountH.RegisterRoutes(protected)
	for _, h := range []ProtectedHandler{r.appointmentH, r.userH, r.rbacH} {
		h.RegisterRoutes(protected, r.auth.RequirePermission)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
