package httpapi

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/metrics/export/prometheus"
	"github.com/MrEthical07/authkit/middleware"
)

// BasePath prefixes every authentication route.
const BasePath = "/api/auth"

// Router mounts the API on an echo instance.
type Router struct {
	handler     *Handler
	metrics     *prometheus.Exporter
	guard       echo.MiddlewareFunc
	admin       echo.MiddlewareFunc
	ipExtractor echo.IPExtractor
	logger      zerolog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTrustedProxies makes the client address come from X-Forwarded-For,
// honouring only hops inside proxies. Without it the peer address is used
// and forwarding headers are ignored.
func WithTrustedProxies(proxies ...*net.IPNet) RouterOption {
	return func(r *Router) {
		if len(proxies) == 0 {
			return
		}
		opts := []echo.TrustOption{
			echo.TrustLoopback(false),
			echo.TrustLinkLocal(false),
			echo.TrustPrivateNet(false),
		}
		for _, p := range proxies {
			opts = append(opts, echo.TrustIPRange(p))
		}
		r.ipExtractor = echo.ExtractIPFromXFFHeader(opts...)
	}
}

func NewRouter(engine *authkit.Engine, logger zerolog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		handler:     NewHandler(engine, logger),
		metrics:     prometheus.NewExporter(engine),
		admin:       echo.WrapMiddleware(middleware.RequireRole(authkit.RoleAdmin)),
		ipExtractor: echo.ExtractIPDirect(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.guard = echo.WrapMiddleware(middleware.Guard(engine, middleware.WithIPExtractor(middleware.IPExtractor(r.ipExtractor))))
	return r
}

// Setup installs the common middleware and registers all routes.
func (r *Router) Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = r.ipExtractor
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			r.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	r.Register(e.Group(BasePath))
}

// Register attaches the authentication routes to g.
func (r *Router) Register(g *echo.Group) {
	h := r.handler

	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/refresh-token", h.RefreshToken)
	g.POST("/logout", h.Logout)
	g.POST("/reset-password", h.RequestPasswordReset)
	g.PUT("/reset-password/:token", h.ResetPassword)

	user := g.Group("/user", r.guard)
	user.GET("", h.CurrentUser)
	user.PUT("", h.UpdateUser)

	admin := g.Group("/admin/users", r.guard, r.admin)
	admin.GET("/:id", h.GetUser)
	admin.PUT("/:id/status", h.SetAccountStatus)
	admin.POST("/:id/revoke-tokens", h.RevokeTokens)
	admin.DELETE("/:id/tokens", h.PurgeTokens)
}
