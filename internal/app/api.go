// Package app wires services, handlers and middleware into runnable
// components.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/account"
	"github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	rbacHandler "github.com/jwalitptl/clinic-api/internal/handler/rbac"
	userHandler "github.com/jwalitptl/clinic-api/internal/handler/user"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/identity"
	rbacService "github.com/jwalitptl/clinic-api/internal/service/rbac"
	userService "github.com/jwalitptl/clinic-api/internal/service/user"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type APIDeps struct {
	Config   *config.Config
	Store    repository.Store
	Hasher   security.PasswordHasher
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Checks are extra readiness probes besides the store.
	Checks map[string]health.Pinger
}

// NewAPI builds the HTTP router with every route registered.
func NewAPI(d APIDeps) *router.Router {
	cfg := d.Config

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	identitySvc := identity.NewService(d.Store, d.Logger)
	authSvc := authService.NewService(d.Store, d.Hasher, jwtSvc, authService.Options{
		MaxFailedLogins: cfg.Security.MaxFailedLogins,
		LockoutDuration: cfg.Security.LockoutDuration,
	}, d.Logger)
	userSvc := userService.NewService(d.Store, d.Hasher, cfg.Users.DefaultPassword, d.Logger, d.Metrics)
	appointmentSvc := appointmentService.NewService(d.Store, userSvc, d.Logger, d.Metrics)
	rbacSvc := rbacService.NewService(d.Store, d.Logger, d.Metrics)

	checks := map[string]health.Pinger{"database": d.Store}
	for name, c := range d.Checks {
		checks[name] = c
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc, identitySvc),
		router.Handlers{
			Auth:        authHandler.NewHandler(authSvc),
			Account:     account.NewHandler(),
			Appointment: appointment.NewHandler(appointmentSvc),
			User:        userHandler.NewHandler(userSvc),
			RBAC:        rbacHandler.NewHandler(rbacSvc),
			Health:      health.NewHandler(checks),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateEnabled:    cfg.RateLimit.Enabled,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Metrics:        d.Metrics,
			Gatherer:       d.Gatherer,
			TraceService:   traceService(cfg),
		},
	)
	r.Setup()
	return r
}

func traceService(cfg *config.Config) string {
	if !cfg.Tracing.Enabled {
		return ""
	}
	return cfg.Tracing.ServiceName
}
