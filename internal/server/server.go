// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "sidequest/docs" // swagger docs
	"sidequest/internal/cache"
	"sidequest/internal/config"
	"sidequest/internal/database"
	"sidequest/internal/mailer"
	"sidequest/internal/middleware"
	"sidequest/internal/models"
	"sidequest/internal/notifications"
	"sidequest/internal/repository"
	"sidequest/internal/service"
	"sidequest/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	logger         *slog.Logger

	store storage.ObjectStore
	mail  *mailer.Dispatcher
	cache *cache.Store

	userRepo   repository.UserRepository
	jobRepo    repository.JobRepository
	ratingRepo repository.RatingRepository
	assetRepo  repository.AssetRepository
	chatRepo   repository.ChatRepository

	notifier *notifications.Notifier
	chatHub  *notifications.ChatHub

	authService   *service.AuthService
	userService   *service.UserService
	jobService    *service.JobService
	ratingService *service.RatingService
	assetService  *service.AssetService
	chatService   *service.ChatService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it the server runs single-instance.
	redisClient := cache.Connect(context.Background(), cfg.RedisURL)

	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	var m mailer.Mailer
	if cfg.SendGridAPIKey != "" {
		m = mailer.NewSendGridMailer(cfg.SendGridAPIKey, "", cfg.MailFrom, cfg.MailFromName)
	} else {
		m = mailer.NewLogMailer(middleware.Logger)
	}

	return NewServerWithDeps(cfg, db, redisClient, store, m)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore, m mailer.Mailer) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: nil database")
	}
	if store == nil {
		return nil, errors.New("server: nil object store")
	}

	logger := middleware.Logger

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("sidequest-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		logger:         logger,
		store:          store,
		mail:           mailer.NewDispatcher(m, logger),
		cache:          cache.NewStore(redisClient),
		userRepo:       repository.NewUserRepository(db),
		jobRepo:        repository.NewJobRepository(db),
		ratingRepo:     repository.NewRatingRepository(db),
		assetRepo:      repository.NewAssetRepository(db),
		chatRepo:       repository.NewChatRepository(db),
	}

	server.authService = service.NewAuthService(server.userRepo, server.mail, cfg.BcryptCost, cfg.SessionTTL())
	server.userService = service.NewUserService(server.userRepo, server.assetRepo, store, server.cache, logger)
	server.jobService = service.NewJobService(server.jobRepo, server.userRepo, store, server.cache, server.mail, logger)
	server.ratingService = service.NewRatingService(server.ratingRepo, server.userRepo)
	server.assetService = service.NewAssetService(server.assetRepo, server.userRepo, server.jobRepo, store, server.cache, logger,
		service.AssetOptions{
			MaxDimension:  cfg.AssetMaxDimension,
			MaxPixels:     cfg.AssetMaxPixels,
			UploadTimeout: cfg.AssetUploadTimeout(),
		})
	server.chatService = service.NewChatService(server.chatRepo, server.userRepo)

	// The notifier is a no-op without Redis and the hub then delivers locally.
	server.notifier = notifications.NewNotifier(redisClient, logger)
	server.chatHub = notifications.NewChatHub(server.notifier, logger)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// OpenTelemetry server spans; sets the trace id the context middleware reads
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application. Routing is not
// strict, so every path also answers with a trailing slash.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	auth := s.AuthRequired()

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Side Quest Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Uploaded images, when they live on local disk
	if disk, ok := s.store.(*storage.DiskStore); ok {
		app.Static("/media", disk.Dir(), fiber.Static{MaxAge: 3600})
	}

	// Session lifecycle
	api.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	api.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	api.Post("/session", s.RenewSession)
	api.Post("/logout", s.Logout)
	api.Get("/secret", auth, s.Secret)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", auth, s.IssueWSTicket)

	// Users. Specific /:id/:resource routes are distinct by segment count.
	api.Get("/user", s.GetUsers)
	api.Post("/user/:id/job", auth, s.CreateJob)
	api.Post("/user/:id/job/:job_id", auth, s.ApplyToJob)
	api.Post("/user/:id/rating/:postee_id", auth, s.CreateRating)
	api.Post("/user/:id/upload", auth, s.UploadUserAsset)
	api.Get("/user/:id/chat", auth, s.GetUserChats)
	api.Get("/user/:id", s.GetUser)
	api.Post("/user/:id", auth, s.UpdateUser)
	api.Delete("/user/:id", auth, s.DeleteUser)

	// Jobs. /filter must be registered before the generic /:id route.
	api.Get("/job", s.GetJobs)
	api.Get("/job/filter", s.FilterJobs)
	api.Post("/job/:id/user/:user_id", auth, s.PickReceiver)
	api.Post("/job/:id/done", auth, s.MarkJobDone)
	api.Post("/job/:id/upload", auth, s.UploadJobAsset)
	api.Get("/job/:id", s.GetJob)
	api.Post("/job/:id", auth, s.UpdateJob)
	api.Delete("/job/:id", auth, s.DeleteJob)

	// Ratings
	api.Get("/rating", s.GetRatings)
	api.Get("/rating/:id", s.GetRating)
	api.Post("/rating/:id", auth, s.UpdateRating)
	api.Delete("/rating/:id", auth, s.DeleteRating)

	// Assets
	api.Get("/asset", s.GetAssets)
	api.Get("/asset/:id", s.GetAsset)
	api.Delete("/asset/:id", auth, s.DeleteAsset)

	// Realtime chat socket, authenticated by a single-use ticket.
	// Registered before /chat/:id so "ws" is never parsed as an id.
	api.Get("/chat/ws", s.WSTicketRequired(), s.WebSocketChatHandler())

	// Chats and messages
	api.Post("/chat", auth, s.CreateChat)
	api.Get("/chat/:id/message", auth, s.GetChatMessages)
	api.Get("/chat/:id", auth, s.GetChat)
	api.Delete("/chat/:id", auth, s.DeleteChat)
	api.Get("/message/:id", auth, s.GetMessage)
	api.Delete("/message/:id", auth, s.DeleteMessage)
}

// newApp builds a fully configured Fiber app without listening.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Side Quest API",
		BodyLimit: s.config.BodyLimitMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			s.logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so a
// server running without it is still ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "Side Quest API",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.newApp()

	// Wire the chat hub to Redis pub/sub if available
	if err := s.chatHub.StartWiring(s.shutdownCtx); err != nil {
		s.logger.Warn("chat hub wiring failed, delivering locally", slog.String("error", err.Error()))
	}

	s.logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the pub/sub subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close WebSocket connections gracefully
	if err := s.chatHub.Shutdown(ctx); err != nil {
		s.logger.Error("error shutting down chat hub", slog.String("error", err.Error()))
	}

	// Let queued emails go out
	if err := s.mail.Close(ctx); err != nil {
		s.logger.Warn("pending emails abandoned", slog.String("error", err.Error()))
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			s.logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			s.logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	s.logger.Info("Server shutdown complete")
	return nil
}

// baseContext is the parent context for work that outlives a request, such
// as websocket events.
func (s *Server) baseContext() context.Context {
	if s.shutdownCtx != nil {
		return s.shutdownCtx
	}
	return context.Background()
}
