package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"stash/internal/metrics"
)

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/files/:name", a.handler.ServeFile)

	v1 := e.Group("/api/v1")
	a.registerPublicV1Routes(v1)
	a.registerWriteV1Routes(v1)
}

func (a *API) registerPublicV1Routes(v1 *echo.Group) {
	v1.GET("/assets", a.handler.ListAssets)
	v1.GET("/assets/:id", a.handler.GetAsset)
}

func (a *API) registerWriteV1Routes(v1 *echo.Group) {
	w := v1.Group("")
	w.Use(a.auth.Middleware)
	w.Use(middleware.BodyLimit(bodyLimit(a.cfg.MaxUploadBytes)))
	w.POST("/assets", a.handler.CreateAsset)
	w.PUT("/assets/:id", a.handler.UpdateAsset)
	w.DELETE("/assets/:id", a.handler.DeleteAsset)
}
