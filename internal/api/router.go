package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/justexisted/bonitaforward-identity/docs"
	"github.com/justexisted/bonitaforward-identity/internal/api/handler"
	"github.com/justexisted/bonitaforward-identity/internal/api/middleware"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

// RouterDeps carries the wired collaborators the HTTP facade needs.
// Construction happens in main because the identity service has a
// lifecycle of its own.
type RouterDeps struct {
	Auth     ports.AuthFlow
	Identity ports.IdentityReader
	Verifier ports.RoleVerifier

	Mongo *mongo.Database
	Redis *redis.Client

	// ServiceToken guards /v1; empty disables the guard.
	ServiceToken string

	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	// --- Operational endpoints (no service token required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Mongo, deps.Redis, deps.Identity.Ready())

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness)  // readiness – dependencies up, bootstrap done?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	// --- Service surface ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	identityHandler := handler.NewIdentityHandler(deps.Identity)
	adminHandler := handler.NewAdminHandler(deps.Verifier)

	v1 := e.Group("/v1", middleware.ServiceToken(deps.ServiceToken))
	v1.POST("/auth/signup", authHandler.SignUp)
	v1.POST("/auth/signin", authHandler.SignIn)
	v1.POST("/auth/signout", authHandler.SignOut)
	v1.GET("/identity", identityHandler.Get)
	v1.GET("/identity/watch", identityHandler.Watch)
	v1.GET("/admin/status", adminHandler.Status)
	v1.GET("/admin/allowlist", adminHandler.Allowlist, middleware.RequireAdmin(deps.Verifier))

	return e
}
