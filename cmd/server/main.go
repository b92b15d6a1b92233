package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcredential "github.com/bricksync/backend/internal/application/credential"
	appsync "github.com/bricksync/backend/internal/application/sync"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/auth"
	"github.com/bricksync/backend/internal/infrastructure/cache"
	"github.com/bricksync/backend/internal/infrastructure/config"
	"github.com/bricksync/backend/internal/infrastructure/crypto"
	"github.com/bricksync/backend/internal/infrastructure/logger"
	mkt "github.com/bricksync/backend/internal/infrastructure/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/persistence"
	"github.com/bricksync/backend/internal/infrastructure/ratelimit"
	"github.com/bricksync/backend/internal/infrastructure/scheduler"
	"github.com/bricksync/backend/internal/interfaces/http/handler"
	"github.com/bricksync/backend/internal/interfaces/http/middleware"
	"github.com/bricksync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting BrickSync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis is optional. Without it the rate limiter and webhook dedup fall
	// back to in-memory stores, which is fine for a single instance.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, falling back to in-memory stores", zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}
	cancelPing()

	// Initialize repositories
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)
	notificationRepo := persistence.NewGormWebhookNotificationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Credential vault
	encryptor, err := crypto.NewAEADFieldEncryptor(cfg.Vault.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize field encryptor", zap.Error(err))
	}
	credentialSvc := appcredential.NewService(credentialRepo, encryptor, log)

	// Outbound rate limiter with circuit breaker
	var limiterStore marketplace.RateLimitStore
	if redisClient != nil {
		limiterStore = ratelimit.NewRedisRateLimitStore(redisClient, "bricksync:ratelimit")
	} else {
		limiterStore = ratelimit.NewInMemoryRateLimitStore()
	}
	limiter := ratelimit.NewLimiter(limiterStore, log)

	// Marketplace adapters share one signing transport
	transport := mkt.NewTransport(cfg.Marketplace.RequestTimeout, log)
	registry := mkt.NewAdapterRegistry(
		mkt.NewBrickLinkAdapter(credentialSvc, limiter, transport, log),
		mkt.NewBrickOwlAdapter(credentialSvc, limiter, transport, log),
	)
	credentialSvc.SetRegistry(registry)

	// Order ingestion and webhook intake
	ingestionSvc := appsync.NewIngestionService(registry, txScope, log)

	dedupeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	dedupeStore, err := dedupeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	webhookSvc := appsync.NewWebhookService(credentialRepo, notificationRepo, ingestionSvc, dedupeStore, log)

	// Background polling and webhook maintenance
	schedulerCtx, cancelSchedulers := context.WithCancel(context.Background())
	defer cancelSchedulers()

	var (
		pollScheduler *scheduler.OrderPollScheduler
		pollTrigger   *scheduler.OrderPollTrigger
		maintenance   *scheduler.WebhookMaintenance
	)

	if cfg.Sync.Enabled {
		pollCfg := scheduler.PollSchedulerConfig{
			Enabled:           cfg.Sync.Enabled,
			MaxConcurrentJobs: cfg.Sync.MaxConcurrentJobs,
			JobTimeout:        cfg.Sync.JobTimeout,
			RetryAttempts:     cfg.Sync.RetryAttempts,
			RetryDelay:        cfg.Sync.RetryDelay,
			PollInterval:      cfg.Sync.PollInterval,
			MinPollInterval:   cfg.Sync.MinPollInterval,
			MaxPollInterval:   cfg.Sync.MaxPollInterval,
			Lookback:          cfg.Sync.Lookback,
			FirstPollLookback: cfg.Sync.FirstPollLookback,
		}
		executor := scheduler.NewOrderPollExecutor(ingestionSvc, log)
		pollScheduler, err = scheduler.NewOrderPollScheduler(pollCfg, executor, log)
		if err != nil {
			log.Fatal("Failed to create order poll scheduler", zap.Error(err))
		}
		if err := pollScheduler.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start order poll scheduler", zap.Error(err))
		}

		triggerCfg := scheduler.DefaultOrderPollTriggerConfig()
		triggerCfg.CheckInterval = cfg.Sync.CheckInterval
		pollTrigger = scheduler.NewOrderPollTrigger(triggerCfg, pollScheduler, credentialRepo, log)
		if err := pollTrigger.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start order poll trigger", zap.Error(err))
		}
		log.Info("Order polling started",
			zap.Duration("poll_interval", pollCfg.EffectivePollInterval()),
			zap.Int("workers", pollCfg.MaxConcurrentJobs),
		)
	}

	if cfg.Webhook.CallbackBaseURL != "" {
		maintCfg := scheduler.DefaultWebhookMaintenanceConfig()
		maintCfg.CallbackBaseURL = cfg.Webhook.CallbackBaseURL
		maintCfg.SweepInterval = cfg.Webhook.SweepInterval
		maintCfg.StaleAfter = cfg.Webhook.RegistrationStaleAfter
		maintCfg.RetryBatchSize = cfg.Webhook.RetryBatchSize

		maintenance, err = scheduler.NewWebhookMaintenance(maintCfg, credentialRepo, registry, webhookSvc, log)
		if err != nil {
			log.Fatal("Failed to create webhook maintenance", zap.Error(err))
		}
		if err := maintenance.Start(schedulerCtx); err != nil {
			log.Fatal("Failed to start webhook maintenance", zap.Error(err))
		}
		log.Info("Webhook maintenance started",
			zap.String("callback_base_url", cfg.Webhook.CallbackBaseURL),
			zap.Duration("sweep_interval", maintCfg.SweepInterval),
		)
	} else {
		log.Warn("webhook.callback_base_url not set, webhook registration sweep disabled")
	}

	// JWT service for tenant authentication. Revoked tokens are tracked in
	// Redis when available so logout works across instances.
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if redisClient != nil {
		tokenBlacklist = auth.NewRedisTokenBlacklistWithClient(redisClient)
	} else {
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	}

	// Initialize handlers
	credentialHandler := handler.NewCredentialHandler(credentialSvc, log)
	syncHandler := handler.NewSyncHandler(ingestionSvc, log)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, log)
	healthHandler := handler.NewHealthHandler(db, redisClient)
	systemHandler := handler.NewSystemHandler()

	// Set gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Register custom validators
	middleware.SetupValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(
			cfg.HTTP.RateLimitRequests,
			cfg.HTTP.RateLimitWindow,
		)))
	}

	// Liveness and readiness outside API versioning
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)

	// Public webhook intake. Authenticated by the opaque callback token in
	// the path, not by JWT; providers cannot send Authorization headers.
	engine.POST("/webhook/:token",
		middleware.BodyLimit(cfg.Webhook.MaxBodySize),
		webhookHandler.Receive,
	)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
		},
		Logger: log,
	}))

	credentialGroup := router.NewDomainGroup("credentials", "/credentials")
	credentialGroup.
		PUT("/:provider", credentialHandler.Save).
		GET("/:provider", credentialHandler.Status).
		DELETE("/:provider", credentialHandler.Revoke).
		POST("/:provider/test", credentialHandler.Test)

	syncGroup := router.NewDomainGroup("sync", "/sync")
	syncGroup.POST("/orders/:provider", syncHandler.PullOrders)

	systemGroup := router.NewDomainGroup("system", "/system")
	systemGroup.
		GET("/info", systemHandler.GetSystemInfo).
		GET("/ping", systemHandler.Ping)

	r.Register(credentialGroup).
		Register(syncGroup).
		Register(systemGroup)

	r.Setup()

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Stop background workers before the HTTP server so in-flight polls can
	// finish while the listener drains.
	if pollTrigger != nil {
		if err := pollTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping order poll trigger", zap.Error(err))
		}
	}
	if maintenance != nil {
		if err := maintenance.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping webhook maintenance", zap.Error(err))
		}
	}
	if pollScheduler != nil {
		if err := pollScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping order poll scheduler", zap.Error(err))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
