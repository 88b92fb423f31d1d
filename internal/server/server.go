// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lumen/internal/config"
	"lumen/internal/middleware"
	"lumen/internal/models"
	"lumen/internal/observability"
	"lumen/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the services and health checks the server routes to.
type Deps struct {
	Feed   *service.FeedService
	Social *service.SocialService
	Posts  *service.PostService
	Users  *service.UserService
	Checks map[string]HealthCheck
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	feed           *service.FeedService
	social         *service.SocialService
	posts          *service.PostService
	users          *service.UserService
	checks         map[string]HealthCheck
}

// NewServer builds the fiber app with middleware and routes installed.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:         cfg,
		promMiddleware: middleware.InitMetrics("lumen-api"),
		feed:           deps.Feed,
		social:         deps.Social,
		posts:          deps.Posts,
		users:          deps.Users,
		checks:         deps.Checks,
	}

	app := fiber.New(fiber.Config{
		AppName: "Lumen API",
		// Handler values such as c.Params outlive the request in the stores.
		Immutable: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			return RespondWithError(c, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.MetricsMiddleware(s.promMiddleware))

	// Auth runs per route; routes repeat ContextMiddleware after it to pick
	// up the user id.
	app.Use(middleware.ContextMiddleware())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		// fiber rejects credentials with a wildcard origin.
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	if s.config.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.config.RateLimitPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
					Error: "Too many requests, please try again later.",
					Code:  "RATE_LIMITED",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	s.promMiddleware.RegisterAt(app, "/metrics")

	required := middleware.AuthRequired(s.config.JWTSecret)
	optional := middleware.OptionalAuth(s.config.JWTSecret)
	withUser := middleware.ContextMiddleware()

	api := app.Group("/api")

	api.Post("/auth/login", s.Login)

	posts := api.Group("/posts")
	posts.Get("/", optional, withUser, s.GetFeed)
	posts.Get("/user/:username", optional, withUser, s.GetUserFeed)
	posts.Post("/", required, withUser, s.CreatePost)
	posts.Put("/:id", required, withUser, s.UpdatePost)
	posts.Delete("/:id", required, withUser, s.DeletePost)
	posts.Post("/:id/like", required, withUser, s.LikePost)
	posts.Delete("/:id/like", required, withUser, s.UnlikePost)
	posts.Get("/:id/comments", optional, withUser, s.GetComments)
	posts.Post("/:id/comments", required, withUser, s.CreateComment)
	posts.Delete("/:id/comments/:commentId", required, withUser, s.DeleteComment)

	users := api.Group("/users")
	users.Post("/", s.Register)
	users.Get("/search/:text", s.SearchProfiles)
	users.Put("/me/avatar", required, withUser, s.ChangeAvatar)
	users.Delete("/me/avatar", required, withUser, s.RemoveAvatar)
	users.Get("/:username", s.GetProfile)
	users.Post("/:id/follow", required, withUser, s.Follow)
	users.Delete("/:id/follow", required, withUser, s.Unfollow)
}

// HealthCheck checks every configured dependency.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	status := fiber.StatusOK
	overall := "healthy"
	checks := fiber.Map{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			observability.Logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			checks[name] = "unhealthy"
			status = fiber.StatusServiceUnavailable
			overall = "unhealthy"
			continue
		}
		checks[name] = "healthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	observability.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
