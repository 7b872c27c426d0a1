package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
)

const principalKey = "principal"

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// promhttp sets its own content type
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/quote", h.Quote)
	v1.GET("/route", h.Route)
	v1.GET("/venues", h.Venues)
	v1.GET("/config", h.Config)
	v1.GET("/trades/recent", h.RecentTrades)
	v1.GET("/balances/:owner", h.Balance)

	limit, burst := cfg.SwapRateLimit, cfg.SwapBurst
	if limit <= 0 {
		limit = 20
	}
	if burst <= 0 {
		burst = 40
	}
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	}))
	// Trades are placed by a key bound to the paying account
	v1.POST("/swap", h.Swap, limiter, h.keyAuth())

	// Admin endpoints: the API key resolves to a principal, capabilities are checked per operation
	admin := v1.Group("/admin")
	admin.Use(h.keyAuth())
	admin.GET("/whoami", h.WhoAmI)
	admin.POST("/venues", h.AddVenue)
	admin.DELETE("/venues/:id", h.RemoveVenue)
	admin.PUT("/venues/:id/active", h.SetVenueActive)
	admin.PUT("/fee", h.SetFee)
	admin.PUT("/limits", h.SetLimits)
	admin.PUT("/intermediates", h.SetIntermediates)
	admin.PUT("/gas", h.SetGas)
	admin.PUT("/mev", h.SetMEV)
	admin.POST("/pause", h.Pause)
	admin.POST("/unpause", h.Unpause)
	admin.GET("/pause", h.PauseStatus)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}

// keyAuth resolves X-API-Key to a principal stored on the echo and request contexts.
func (h *Handlers) keyAuth() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Validator: func(key string, c echo.Context) (bool, error) {
			if h.Keys == nil {
				return false, nil
			}
			p, ok := h.Keys.Lookup(key)
			if !ok {
				return false, nil
			}
			c.Set(principalKey, p)
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return h.err(c, http.StatusUnauthorized, "unauthorized", map[string]any{"err": err.Error()})
		},
	})
}
