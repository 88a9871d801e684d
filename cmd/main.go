package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "carshelf/docs"
	"carshelf/internal/caching"
	"carshelf/internal/config"
	"carshelf/internal/handlers"
	"carshelf/internal/jobs/background"
	"carshelf/internal/middleware"
	"carshelf/internal/repositories"
	"carshelf/internal/services"
	"carshelf/pkg/database"
	"carshelf/pkg/logger"
)

const version = "1.0.0"

//	@title			carshelf API
//	@version		1.0
//	@description	Personal car listings with photos, backed by a hosted identity provider.
//	@BasePath		/
func main() {
	if err := config.LoadEnvFiles(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPool(ctx, cfg.Database.URL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(pool); err != nil {
			zapLogger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Cache and storage
	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zapLogger)

	storageSvc, err := services.NewStorageService(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.UseSSL,
		cfg.Storage.Bucket,
		cfg.Storage.ObjectBaseURL(),
	)
	if err != nil {
		zapLogger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	if err := storageSvc.EnsureBucketExists(ctx); err != nil {
		zapLogger.Warn("Could not prepare photo bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
	}

	// Services
	carRepo := repositories.NewCarRepo(pool)
	carSvc := services.NewCarService(carRepo, storageSvc, cacheSvc, cfg.Redis.CarTTL, zapLogger)
	authSvc := services.NewAuthService(cfg.Identity.URL, cfg.Identity.APIKey, cfg.Identity.SiteURL, cfg.Identity.Timeout, zapLogger)

	sessionGate, err := middleware.NewSessionGate(middleware.SessionConfig{
		JWTSecret:  cfg.Identity.JWTSecret,
		JWKSURL:    cfg.Identity.JWKSURL,
		CookieName: cfg.Identity.SessionCookie,
		Cache:      cacheSvc,
		Logger:     zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to initialize session gate", zap.Error(err))
	}

	scheduler, err := background.NewJobScheduler(carRepo, storageSvc, cfg.Storage.SweepInterval, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize job scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			zapLogger.Warn("Job scheduler did not stop cleanly", zap.Error(err))
		}
	}()

	// Handlers
	carHandlers := handlers.NewCarHandlers(carSvc, cfg.Storage.MaxImageSize, zapLogger)
	authHandlers := handlers.NewAuthHandlers(authSvc, cacheSvc, handlers.CookieConfig{
		SessionName: cfg.Identity.SessionCookie,
		RefreshName: cfg.Identity.RefreshCookie,
		Secure:      cfg.Identity.CookieSecure,
	}, zapLogger)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, storageSvc, version, zapLogger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler(zapLogger)

	// Global middleware
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(zapLogger))
	e.Use(middleware.VersionHeader(version))
	e.Use(echoMiddleware.RecoverWithConfig(echoMiddleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zapLogger.Error("Recovered from panic", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     cfg.Server.Origins(),
		AllowCredentials: true,
	}))
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	// Health and docs (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/docs/*", echoSwagger.WrapHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", authHandlers.Login)
	auth.POST("/signup", authHandlers.Signup)
	auth.POST("/signout", authHandlers.Signout, sessionGate.Optional())

	// Car routes
	cars := e.Group("/cars", sessionGate.Require())
	cars.GET("", carHandlers.ListCars)
	cars.POST("", carHandlers.CreateCar)
	cars.GET("/:id", carHandlers.GetCar)
	cars.PUT("/:id", carHandlers.UpdateCar)
	cars.DELETE("/:id", carHandlers.DeleteCar)

	go func() {
		zapLogger.Info("carshelf server starting", zap.String("version", version), zap.String("addr", cfg.Server.Addr()))
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
