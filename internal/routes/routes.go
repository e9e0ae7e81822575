package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/BradenHooton/clinicauth/internal/handlers"
	"github.com/BradenHooton/clinicauth/internal/middleware"
	"github.com/BradenHooton/clinicauth/internal/models"
	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// Dependencies are the collaborators the route table needs
type Dependencies struct {
	AuthHandler     *handlers.AuthHandler
	RecoveryHandler *handlers.RecoveryHandler
	TokenManager    *auth.ClientTokenManager
	Cookies         auth.CookieConfig
	Roles           auth.RoleLookup
	Resolver        *auth.Resolver
	Health          handlers.HealthChecker
	IPConfig        *pkghttp.IPConfig
	RateLimit       middleware.RateLimitConfig
	Logger          *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	resolver := deps.Resolver
	if resolver == nil {
		resolver = auth.NewResolver(auth.DefaultGrants())
	}

	router.Get("/health", handlers.Health(deps.Health, deps.Logger))

	router.Group(func(r chi.Router) {
		r.Use(auth.ClientMiddleware(deps.TokenManager, deps.Cookies, deps.Logger))
		r.Use(middleware.CaptureClientID)
		r.Use(middleware.RequireJSON)

		authHandler := deps.AuthHandler
		limitByIP := middleware.RateLimitByIP(deps.RateLimit, deps.IPConfig)

		r.Route("/auth", func(r chi.Router) {
			r.With(limitByIP).Post("/login", authHandler.Login)
			r.With(limitByIP).Post("/mfa/verify", authHandler.VerifyMFA)
			r.With(limitByIP).Post("/register", authHandler.Register)

			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/session", authHandler.Session)
			r.Post("/session/activity", authHandler.Activity)
			r.Post("/password", authHandler.ChangePassword)
			r.Post("/mfa/enroll", authHandler.EnrollMFA)
			r.Post("/mfa/confirm", authHandler.ConfirmMFA)

			r.Route("/recovery", func(r chi.Router) {
				r.Use(limitByIP)
				r.Post("/request", deps.RecoveryHandler.Request)
				r.Post("/resend", deps.RecoveryHandler.Resend)
				r.Post("/verify", deps.RecoveryHandler.Verify)
				r.Post("/reset", deps.RecoveryHandler.Reset)
			})
		})

		// Role-gated areas
		r.With(auth.RequireRole(resolver, deps.Roles, models.RoleProfessional, deps.Logger)).
			Get("/professional/dashboard", authHandler.Dashboard("professional"))
		r.With(auth.RequireRole(resolver, deps.Roles, models.RolePatient, deps.Logger)).
			Get("/patient/dashboard", authHandler.Dashboard("patient"))
	})
}
