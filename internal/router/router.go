// Package router registers the HTTP routes of the voting service.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/society-voting/internal/config"
	"github.com/iliyamo/society-voting/internal/handler"
	"github.com/iliyamo/society-voting/internal/metrics"
	"github.com/iliyamo/society-voting/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health  *handler.HealthHandler
	Society *handler.SocietyHandler
	Verify  *handler.VerifyHandler
	Ballot  *handler.BallotHandler
}

// Options configures the middleware wrapped around the routes.  A nil
// Redis client disables rate limiting and caching.
type Options struct {
	SessionSecret string
	Revocations   middleware.RevocationChecker
	Redis         *redis.Client
	RateLimit     config.RateLimitConfig
	Cache         config.CacheConfig
}

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAPI registers the voter-facing API under /api.  Verification is
// rate limited; the ballot routes require a voter session.
func RegisterAPI(e *echo.Echo, h Handlers, opts Options) {
	api := e.Group("/api")

	api.POST("/get_society_details", h.Society.Details)
	api.GET("/societies/:society/details", h.Society.DetailsByName, middleware.NewRedisCache(opts.Cache, opts.Redis))

	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis)
	api.POST("/verify_code", h.Verify.VerifyCode, limit)
	api.POST("/verify_face", h.Verify.VerifyFace, limit)

	auth := middleware.SessionAuth(opts.SessionSecret, opts.Revocations)
	api.GET("/ballot", h.Ballot.Ballot, auth)
	api.POST("/submit_vote", h.Ballot.Submit, auth)
	// an expired session must still be able to clear its cookie
	api.POST("/logout", h.Ballot.Logout, middleware.OptionalSession(opts.SessionSecret, opts.Revocations))
}
