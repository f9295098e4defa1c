package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/metrics"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/ws"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

// Dependencies are the components the HTTP surface serves. The caller owns
// their lifecycles, including the websocket hub.
type Dependencies struct {
	Catalog      handler.CatalogReader
	Initializer  handler.Initializer
	MatchService handler.MatchService
	AuthService  handler.AuthService
	Tokens       middleware.TokenValidator
	Quota        handler.QuotaAdmin
	Hub          *ws.Hub
	Metrics      *metrics.Manager

	Version           string
	DefaultTopK       int
	MaxUploadBytes    int
	RequestsPerMinute int
	MatchQuotaPerHour int
}

// notStarted reports Idle for a router built without dependencies
type notStarted struct{}

func (notStarted) Status() matching.Status {
	return matching.Status{State: matching.StateIdle}
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	maxUpload := defaultMaxUploadBytes
	if deps != nil && deps.MaxUploadBytes > 0 {
		maxUpload = deps.MaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "CelebMatch API",
		// Room for the multipart envelope around the largest accepted photo
		BodyLimit: maxUpload + 1<<20,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	var recorder middleware.HTTPRecorder
	if r.deps != nil && r.deps.Metrics != nil {
		recorder = r.deps.Metrics
	}

	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger, recorder))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Only configure the API if dependencies were provided
	if r.deps == nil {
		r.app.Get("/health", handler.NewHealthHandler(notStarted{}, "").Health)
		return
	}

	// Health check endpoints (no auth required)
	healthHandler := handler.NewHealthHandler(r.deps.Initializer, r.deps.Version)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps.Metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.deps.Metrics.Handler()))
	}

	// API v1 group: bearer tokens are optional, routes opt into stricter guards
	v1 := r.app.Group("/v1")
	v1.Use(middleware.OptionalAuth(r.deps.Tokens, r.logger))

	// Rate limiting (per user, else per IP) - must come after auth to see the user
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.RequestsPerMinute,
		Window: time.Minute,
	})
	v1.Use(r.rateLimiter.Handler())

	celebrityHandler := handler.NewCelebrityHandler(r.deps.Catalog)
	v1.Get("/celebrities", celebrityHandler.List)

	matchHandler := handler.NewMatchHandler(r.deps.MatchService, r.deps.DefaultTopK, int64(r.deps.MaxUploadBytes))
	v1.Post("/match", matchHandler.Match)
	v1.Get("/matches", middleware.RequireAuth(), matchHandler.History)
	v1.Get("/matches/:id", middleware.RequireAuth(), matchHandler.Get)

	authHandler := handler.NewAuthHandler(r.deps.AuthService)
	authGroup := v1.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Get("/me", middleware.RequireAuth(), authHandler.Me)

	adminHandler := handler.NewAdminHandler(r.deps.Initializer, r.logger)
	v1.Get("/status", adminHandler.Status)

	adminGroup := v1.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	adminGroup.Post("/cache/rebuild", adminHandler.Rebuild)
	adminGroup.Post("/init/retry", adminHandler.Retry)

	if r.deps.Quota != nil {
		quotaHandler := handler.NewQuotaHandler(r.deps.Quota, r.deps.MatchQuotaPerHour, r.logger)
		adminGroup.Get("/quota/:user_id", quotaHandler.Get)
		adminGroup.Delete("/quota/:user_id", quotaHandler.Reset)
	}

	// WebSocket endpoint
	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
