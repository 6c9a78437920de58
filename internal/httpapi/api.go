package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"stash/internal/auth"
	"stash/internal/config"
	"stash/internal/httpapi/handlers"
	"stash/internal/httpapi/middlewares"
	"stash/internal/ratelimit"
)

type API struct {
	cfg     config.Config
	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	handler *handlers.Handler
}

func New(cfg config.Config, svc handlers.AssetService, authn *auth.Authenticator) *API {
	return &API{
		cfg:     cfg,
		auth:    authn,
		limiter: ratelimit.New(middlewares.RateLimitConfig(cfg.RateLimitRead, cfg.RateLimitWrite)),
		handler: handlers.New(svc),
	}
}

// Limiter returns the rate limiter so its sweeper can be run alongside the
// server.
func (a *API) Limiter() *ratelimit.Limiter { return a.limiter }

func (a *API) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middlewares.Observe())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: a.cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderAccept,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			"X-API-Token",
		},
		ExposeHeaders: []string{
			"RateLimit-Limit",
			"RateLimit-Remaining",
			"RateLimit-Reset",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 600,
	}))
	e.Use(middlewares.NewRateLimitMiddleware(a.auth, a.limiter))

	a.registerRoutes(e)
	return e
}

// bodyLimit renders n bytes in the unit syntax echo's BodyLimit expects,
// rounded up to whole KiB.
func bodyLimit(n int64) string {
	return fmt.Sprintf("%dK", (n+1023)/1024)
}
