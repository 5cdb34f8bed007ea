package rest

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) SetupRoutes(engine *echo.Echo) {
	engine.GET("/health", h.echoHandler(h.HealthCheck))
	engine.GET("/version", h.echoHandler(h.Version))
	engine.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := engine.Group("/api", echo.WrapMiddleware(LoggerMiddleware))
	// v1 routes
	{
		apiV1 := api.Group("/v1")
		apiV1.GET("/threads", h.echoHandler(h.ListThreads))
		apiV1.GET("/threads/:threadID", h.echoHandlerWithParams(h.GetThread))
		apiV1.GET("/stats", h.echoHandler(h.GetStats))
		apiV1.GET("/loadavg", h.echoHandler(h.GetLoadAvg))
	}
}

func (h *Handler) echoHandler(handlerFunc func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return echo.WrapHandler(http.HandlerFunc(handlerFunc))
}

// echoHandlerWithParams wraps a handler function and injects path parameters into request context
func (h *Handler) echoHandlerWithParams(handlerFunc func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		// Store path params in request context
		for _, name := range c.ParamNames() {
			r = r.WithContext(context.WithValue(r.Context(), pathParamKey(name), c.Param(name)))
		}
		handlerFunc(c.Response().Writer, r)
		return nil
	}
}

// pathParamKey is a type for path parameter context keys
type pathParamKey string

// GetPathParam retrieves a path parameter from request context
func (h *Handler) GetPathParam(r *http.Request, name string) string {
	if val, ok := r.Context().Value(pathParamKey(name)).(string); ok {
		return val
	}
	return ""
}
