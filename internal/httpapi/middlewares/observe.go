package middlewares

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"stash/internal/auth"
	"stash/internal/logging"
	"stash/internal/metrics"
)

// Observe attaches a request-scoped zap logger to the request context and
// records one log line and one metric sample per request. Authenticated
// requests are logged with their subject. It must run after echo's
// RequestID middleware.
func Observe() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = req.Header.Get(echo.HeaderXRequestID)
			}
			ctx := logging.WithRequestID(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(req.Method, route, strconv.Itoa(status), elapsed)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Int64("size", c.Response().Size),
				zap.Duration("duration", elapsed),
				zap.String("remote_ip", c.RealIP()),
			}
			if claims, ok := auth.GetClaims(c); ok {
				fields = append(fields, zap.String("subject", claims.Subject))
			}
			log := logging.WithContext(ctx)
			if status >= 500 {
				log.Error("request failed", fields...)
			} else {
				log.Info("request completed", fields...)
			}
			return nil
		}
	}
}
