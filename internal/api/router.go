package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/laundrydesk/opsync/docs"
	"github.com/laundrydesk/opsync/internal/api/handler"
	"github.com/laundrydesk/opsync/internal/api/middleware"
	"github.com/laundrydesk/opsync/internal/core/domain"
)

// Deps is everything the companion API exposes.
type Deps struct {
	Sessions   handler.SessionManager
	Tasks      handler.TaskWorkflow
	Orders     handler.OrderDesk
	History    handler.TransitionHistory // nil when the audit trail is disabled
	Syncer     handler.Puller
	Reconciler handler.PassRunner
	Checks     map[string]handler.Check
	// Registerer receives the HTTP metrics; prometheus.DefaultRegisterer when nil.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "opsync_api",
		Registerer: reg,
	}))

	authHandler := handler.NewAuthHandler(deps.Sessions)
	taskHandler := handler.NewTaskHandler(deps.Tasks)
	orderHandler := handler.NewOrderHandler(deps.Orders, deps.History)
	syncHandler := handler.NewSyncHandler(deps.Syncer, deps.Reconciler)

	requireSession := middleware.RequireSession(deps.Sessions)
	adminOnly := middleware.RBAC(domain.RoleAdmin)
	staff := middleware.RBAC(domain.RoleAdmin, domain.RoleEmployee)

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.POST("/auth/refresh", authHandler.Refresh, requireSession)
	e.GET("/auth/me", authHandler.Me, requireSession)

	// --- Tasks ---
	tasks := e.Group("/tasks", requireSession)
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create, adminOnly)
	tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
	tasks.DELETE("/:id", taskHandler.Delete, adminOnly)

	// --- Orders ---
	orders := e.Group("/orders", requireSession)
	orders.GET("", orderHandler.List)
	orders.GET("/search", orderHandler.Search)
	orders.GET("/stats", orderHandler.Stats, staff)
	orders.PATCH("/:id/status", orderHandler.UpdateStatus, staff)
	orders.GET("/:id/transitions", orderHandler.Transitions, staff)

	// --- Sync ---
	e.POST("/sync", syncHandler.Sync, requireSession)
	e.POST("/reconcile", syncHandler.Reconcile, requireSession, staff)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
