// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/jobs"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TaskQueueKey is the Redis list backing the background task queue.
const TaskQueueKey = "inkwell:tasks"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens       *middleware.TokenManager
	storage      storage.ObjectStorage
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	worker       *jobs.Worker
	featureFlags *featureflags.Manager

	userService         *service.UserService
	profileService      *service.ProfileService
	postService         *service.PostService
	commentService      *service.CommentService
	voteService         *service.VoteService
	chatService         *service.ChatService
	imageService        *service.ImageService
	notificationService *service.NotificationService
	finderService       *service.FinderService
	purgeService        *service.PurgeService
	statsService        *service.StatsService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SyncFinder: true})
	if err != nil {
		return nil, err
	}

	store, err := storage.NewLocalStorage(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: caching, live notifications and rate limits are then skipped
// and background tasks run from an in-process queue.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStorage) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server: config and database are required")
	}

	var queue jobs.Queue
	if redisClient != nil {
		queue = jobs.NewRedisQueue(redisClient, TaskQueueKey)
	} else {
		queue = jobs.NewMemoryQueue(256)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		tokens:         middleware.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL()),
		storage:        store,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		worker:         jobs.NewWorker(queue),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.tokens.SetResolver(s.resolveClaims)

	s.notificationService = service.NewNotificationService(db, s.notifier)
	s.userService = service.NewUserService(db, store)
	s.profileService = service.NewProfileService(db, s.notificationService)
	s.postService = service.NewPostService(db, store)
	s.commentService = service.NewCommentService(db, s.notificationService)
	s.voteService = service.NewVoteService(db, s.notificationService)
	s.chatService = service.NewChatService(db, s.worker, s.notificationService, service.ChatOptions{
		ExactMatch: cfg.ChatMatchMode == config.ChatMatchExact,
		TxTimeout:  cfg.ChatTimeout(),
	})
	s.imageService = service.NewImageService(db, store, cfg.ImageMaxBytes)
	s.finderService = service.NewFinderService(db)
	s.purgeService = service.NewPurgeService(db, store, s.featureFlags, cfg.PurgeEvery())
	s.statsService = service.NewStatsService(db, s.purgeService)

	s.worker.Register(service.TaskDeleteDuplicateChats, s.chatService.DeleteDuplicates)

	return s, nil
}

// resolveClaims reloads the user behind a token. Deleted users lose access immediately and
// admin changes apply without a new token.
func (s *Server) resolveClaims(ctx context.Context, claims *middleware.TokenClaims) (*middleware.TokenClaims, error) {
	user, err := s.userService.Get(ctx, claims.UserID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, middleware.ErrInvalidToken
		}
		return nil, err
	}
	claims.Username = user.Username
	claims.IsAdmin = user.IsAdmin
	return claims, nil
}

// bodyLimit leaves room for multipart framing around the largest accepted image.
func (s *Server) bodyLimit() int {
	limit := s.config.ImageMaxBytes
	if limit <= 0 {
		limit = service.DefaultImageMaxBytes
	}
	return int(limit) + 1<<20
}

// errorHandler renders errors that escape handlers in the standard envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return models.RespondWithError(c, models.NewNotFoundError("Route", nil))
		}
		if fe.Code < fiber.StatusInternalServerError {
			return c.Status(fe.Code).JSON(models.ErrorResponse{Error: models.ErrorBody{
				Name:    http.StatusText(fe.Code),
				Message: fe.Message,
			}})
		}
	}

	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, models.NewInternalError(err))
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "inkwell API",
		BodyLimit:    s.bodyLimit(),
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	// Tracing runs before ContextMiddleware so the trace ID reaches the request context.
	app.Use(middleware.TracingMiddleware())

	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit so error responses carry headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	if s.purgeService != nil {
		app.Use(PurgeTrigger(s.purgeService))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	authRequired := middleware.AuthRequired(s.tokens)
	optionalAuth := middleware.OptionalAuth(s.tokens)
	adminRequired := s.AdminRequired()

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.config.StorageDir != "" {
		app.Static("/uploads", s.config.StorageDir, fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.SignupLimit), s.Signup)
	auth.Post("/signin", middleware.RateLimit(s.redis, middleware.SigninLimit), s.Signin)
	auth.Get("/me", authRequired, s.Me)

	users := api.Group("/users")
	users.Get("/", authRequired, s.ListUsers)
	users.Patch("/me", authRequired, s.UpdateMe)
	users.Get("/:id", authRequired, s.GetUser)
	users.Delete("/:id", authRequired, s.DeleteUser)

	admin := api.Group("/admin")
	admin.Patch("/users/:id", authRequired, adminRequired, s.SetUserAdmin)
	admin.Post("/purge", authRequired, adminRequired, s.ForcePurge)
	admin.Get("/feature-flags", authRequired, adminRequired, s.GetFeatureFlags)

	profiles := api.Group("/profiles")
	profiles.Get("/", optionalAuth, s.ListProfiles)
	// Specific /me routes before generic /:id
	profiles.Get("/me", authRequired, s.GetMyProfile)
	profiles.Patch("/me", authRequired, s.UpdateMyProfile)
	profiles.Get("/:id/followers", optionalAuth, s.GetFollowers)
	profiles.Get("/:id/following", optionalAuth, s.GetFollowing)
	profiles.Post("/:id/follow", authRequired, s.FollowProfile)
	profiles.Delete("/:id/follow", authRequired, s.UnfollowProfile)
	profiles.Get("/:id", optionalAuth, s.GetProfile)

	posts := api.Group("/posts")
	posts.Get("/", optionalAuth, s.ListPosts)
	posts.Post("/", authRequired, middleware.RateLimit(s.redis, middleware.PostLimit), s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/upvote", authRequired, s.Upvote)
	posts.Post("/:id/downvote", authRequired, s.Downvote)
	posts.Get("/:id/comments", optionalAuth, s.ListComments)
	posts.Post("/:id/comments", authRequired, middleware.RateLimit(s.redis, middleware.CommentLimit), s.CreateComment)
	posts.Get("/:id/comments/:commentId", optionalAuth, s.GetComment)
	posts.Patch("/:id/comments/:commentId", authRequired, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", authRequired, s.DeleteComment)
	posts.Get("/:id", optionalAuth, s.GetPost)
	posts.Patch("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	tags := api.Group("/tags")
	tags.Get("/", s.ListTags)
	tags.Get("/:name/posts", optionalAuth, s.ListTagPosts)

	images := api.Group("/images")
	images.Post("/", authRequired, middleware.RateLimit(s.redis, middleware.UploadLimit), s.UploadImage)
	images.Get("/", authRequired, s.ListMyImages)
	images.Get("/:id", s.GetImage)
	images.Patch("/:id", authRequired, s.UpdateImage)
	images.Delete("/:id", authRequired, s.DeleteImage)

	chats := api.Group("/chats", authRequired)
	chats.Get("/", s.ListChats)
	chats.Post("/", middleware.RateLimit(s.redis, middleware.ChatLimit), s.SendChat)
	chats.Get("/:id/messages", s.GetChatMessages)
	chats.Post("/:id/messages", middleware.RateLimit(s.redis, middleware.ChatLimit), s.PostChatMessage)
	chats.Post("/:id/leave", s.LeaveChat)
	chats.Get("/:id", s.GetChat)
	chats.Delete("/:id", s.DeleteChat)

	notifs := api.Group("/notifications", authRequired)
	notifs.Get("/", s.ListNotifications)
	notifs.Post("/seen", s.MarkAllNotificationsSeen)
	notifs.Patch("/:id/seen", s.MarkNotificationSeen)
	notifs.Delete("/:id", s.DeleteNotification)

	finder := api.Group("/finder")
	finder.Get("/levels", s.ListFinderLevels)
	finder.Get("/levels/:slug/leaderboard", s.GetFinderLeaderboard)
	finder.Post("/levels/:slug/rounds", optionalAuth, s.StartFinderRound)
	finder.Get("/levels/:slug", s.GetFinderLevel)
	finder.Get("/rounds/:id", s.GetFinderRound)
	finder.Post("/rounds/:id/guesses", middleware.RateLimit(s.redis, middleware.FinderGuessRate), s.GuessFinder)

	api.Get("/stats", s.GetStats)

	api.Get("/ws", middleware.WebSocketAuthRequired(s.tokens), s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional; only the database
// decides readiness.
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

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the claims are available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actor(c).IsAdmin {
			return models.RespondWithError(c, models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	s.worker.Start(s.shutdownCtx)

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("Failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("Error shutting down notification hub", slog.String("error", err.Error()))
	}

	s.worker.Stop()
	s.purgeService.Wait()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("Error closing database", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("Error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
