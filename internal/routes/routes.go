package routes

import (
	"github.com/cardbase/authcore/internal/auth"
	"github.com/cardbase/authcore/internal/handlers"
	"github.com/cardbase/authcore/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RateLimits holds the per-route-group rate limit configuration
type RateLimits struct {
	Public        middleware.RateLimitConfig
	Authenticated middleware.RateLimitConfig
}

// DefaultRateLimits returns the production rate limit configuration
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Public:        middleware.DefaultAuthRateLimit(),
		Authenticated: middleware.DefaultAuthenticatedRateLimit(),
	}
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	tokenManager *auth.TokenManager,
	identities auth.IdentityLoader,
	resellerRoles auth.ResellerChecker,
	limits RateLimits,
) {
	// Rate limiting config for credential endpoints
	rateLimitConfig := limits.Public

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login/initiate", authHandler.InitiateLogin)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login/verify", authHandler.VerifyOTP)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login/resend", authHandler.ResendOTP)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/operator/login", authHandler.OperatorLogin)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/password/reset", authHandler.RequestPasswordReset)

	// Logout takes its token straight from the Authorization header so it
	// stays idempotent after the session marker is already cleared
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - valid token plus live session required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, identities))
		r.Use(middleware.RateLimitByIdentity(limits.Authenticated))

		// Change-password sits outside the forced-change gate, otherwise an
		// identity flagged for a password change could never clear the flag
		r.Post("/auth/change-password", authHandler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCurrentPassword())

			r.Get("/me", accountHandler.Me)

			// Reseller-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireReseller(resellerRoles))
				r.Post("/reseller/accounts", accountHandler.ProvisionAccount)
			})
		})
	})
}
