package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/umoja-platform/umoja-api/api/swagger"
	"github.com/umoja-platform/umoja-api/internal/handler"
	"github.com/umoja-platform/umoja-api/internal/middleware"
	"github.com/umoja-platform/umoja-api/internal/models"
	"github.com/umoja-platform/umoja-api/internal/repository"
	"github.com/umoja-platform/umoja-api/internal/service"
	"github.com/umoja-platform/umoja-api/pkg/cache"
	"github.com/umoja-platform/umoja-api/pkg/config"
	"github.com/umoja-platform/umoja-api/pkg/database"
	"github.com/umoja-platform/umoja-api/pkg/logger"
	corsmiddleware "github.com/umoja-platform/umoja-api/pkg/middleware/cors"
	reqidmiddleware "github.com/umoja-platform/umoja-api/pkg/middleware/requestid"
	"github.com/umoja-platform/umoja-api/pkg/notify"
	"github.com/umoja-platform/umoja-api/pkg/storage"
)

// @title Umoja Community API
// @version 1.0.0
// @description Community platform API: content moderation and mentorship lifecycle
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and pub/sub notifications disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	blogRepo := repository.NewBlogRepository(db)
	programRepo := repository.NewProgramRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)

	// Notifications run through a background queue so request handlers never
	// block on delivery.
	var sink notify.Notifier = notify.NewLogNotifier(logr)
	if redisClient != nil {
		sink = notify.NewRedisPublisher(redisClient, cfg.Notifications.Channel, logr)
	}
	dispatcher := notify.NewAsyncDispatcher(sink, notify.DispatcherConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		BufferSize: cfg.Notifications.BufferSize,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	metrics := service.NewMetricsService()

	// Services.
	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "umoja-api",
		Audience:           []string{"umoja-platform"},
	})
	resourceService := service.NewResourceService(resourceRepo, userRepo, logr)
	blogService := service.NewBlogService(blogRepo, logr)
	moderationService := service.NewModerationService(map[string]service.ContentSource{
		"resources": {
			Store: resourceRepo,
			List: func(ctx context.Context, filter models.ContentFilter) ([]models.Approvable, int, error) {
				resources, total, err := resourceRepo.List(ctx, filter)
				if err != nil {
					return nil, 0, err
				}
				items := make([]models.Approvable, len(resources))
				for i, r := range resources {
					items[i] = r
				}
				return items, total, nil
			},
			Find: func(ctx context.Context, id string) (models.Approvable, error) {
				resource, err := resourceRepo.FindByID(ctx, id)
				if err != nil {
					return nil, err
				}
				return *resource, nil
			},
		},
		"blog-posts": {
			Store: blogRepo,
			List: func(ctx context.Context, filter models.ContentFilter) ([]models.Approvable, int, error) {
				posts, total, err := blogRepo.List(ctx, filter)
				if err != nil {
					return nil, 0, err
				}
				items := make([]models.Approvable, len(posts))
				for i, p := range posts {
					items[i] = p
				}
				return items, total, nil
			},
			Find: func(ctx context.Context, id string) (models.Approvable, error) {
				post, err := blogRepo.FindByID(ctx, id)
				if err != nil {
					return nil, err
				}
				return *post, nil
			},
		},
	}, userRepo, dispatcher, metrics, cfg.Moderation.BatchLimit, logr)
	programService := service.NewProgramService(programRepo, redisClient, cfg.Mentorship.ProgramCacheTTL, userRepo, nil, logr)
	applicationService := service.NewApplicationService(applicationRepo, programRepo, userRepo, dispatcher, metrics, nil, logr)
	var (
		exportArchive *storage.LocalStorage
		exportSigner  *storage.SignedURLSigner
	)
	if cfg.Exports.Enabled {
		exportArchive, err = storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Warnw("export archive disabled", "error", err)
		} else {
			exportSigner = storage.NewSignedURLSigner(cfg.JWT.Secret, 24*time.Hour)
		}
	}
	exportService := service.NewExportService(applicationRepo, programRepo, exportArchive, exportSigner, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	resourceHandler := handler.NewResourceHandler(resourceService)
	blogHandler := handler.NewBlogHandler(blogService)
	moderationHandler := handler.NewModerationHandler(moderationService)
	programHandler := handler.NewProgramHandler(programService)
	applicationHandler := handler.NewApplicationHandler(applicationService, programService)
	exportHandler := handler.NewExportHandler(exportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	resources := api.Group("/resources")
	resources.GET("", middleware.OptionalJWT(authService), resourceHandler.List)
	resources.GET("/:id", middleware.OptionalJWT(authService), resourceHandler.Get)
	resources.POST("", middleware.JWT(authService), resourceHandler.Create)
	resources.PUT("/:id", middleware.JWT(authService), resourceHandler.Update)
	resources.DELETE("/:id", middleware.JWT(authService), resourceHandler.Delete)

	posts := api.Group("/blog-posts")
	posts.GET("", middleware.OptionalJWT(authService), blogHandler.List)
	posts.GET("/:id", middleware.OptionalJWT(authService), blogHandler.Get)
	posts.POST("", middleware.JWT(authService), blogHandler.Create)
	posts.PUT("/:id", middleware.JWT(authService), blogHandler.Update)
	posts.DELETE("/:id", middleware.JWT(authService), blogHandler.Delete)

	moderation := api.Group("/moderation", middleware.JWT(authService), middleware.RequireModerator())
	moderation.GET("/:kind", moderationHandler.Queue)
	moderation.PATCH("/:kind/:id/approval", moderationHandler.Decide)
	moderation.POST("/:kind/approval/batch", moderationHandler.DecideBatch)

	programs := api.Group("/mentorship/programs")
	programs.GET("", programHandler.List)
	programs.GET("/:id", programHandler.Get)
	programs.POST("", middleware.JWT(authService), programHandler.Create)
	programs.PUT("/:id", middleware.JWT(authService), programHandler.Update)
	programs.DELETE("/:id", middleware.JWT(authService), programHandler.Deactivate)
	if cfg.Exports.Enabled {
		programs.GET("/:id/roster", middleware.JWT(authService), exportHandler.Roster)
		api.GET("/mentorship/exports/download", exportHandler.Download)
	}

	applications := api.Group("/mentorship/applications", middleware.JWT(authService))
	applications.GET("", applicationHandler.List)
	applications.POST("", applicationHandler.Submit)
	applications.PATCH("/:id/review", applicationHandler.Review)
	applications.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
