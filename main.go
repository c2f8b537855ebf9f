package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veildata/veil/audit"
	"github.com/veildata/veil/config"
	"github.com/veildata/veil/controller"
	"github.com/veildata/veil/dao"
	"github.com/veildata/veil/db"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/ratelimit"
	"github.com/veildata/veil/router"
	"github.com/veildata/veil/service"
	"github.com/veildata/veil/token"
	"github.com/veildata/veil/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	notificationService := util.NewNotificationService()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize Elasticsearch repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	tokenSecret := config.GetString("token.secret")
	if tokenSecret == "" {
		logger.Fatal("token.secret must be configured")
	}
	tokenService := token.NewService([]byte(tokenSecret), config.GetString("token.issuer"))

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(db.RedisClient), ratelimit.Config{
		Endpoints: map[string]ratelimit.EndpointLimit{
			"query": {
				Requests: config.GetInt("ratelimit.query.requests"),
				WindowMs: config.GetInt64("ratelimit.query.windowMs"),
			},
			"admin": {
				Requests: config.GetInt("ratelimit.admin.requests"),
				WindowMs: config.GetInt64("ratelimit.admin.windowMs"),
			},
		},
		Default: ratelimit.EndpointLimit{
			Requests: config.GetInt("ratelimit.default.requests"),
			WindowMs: config.GetInt64("ratelimit.default.windowMs"),
		},
	})
	go runLimiterCleanup(ctx, limiter, config.GetDuration("ratelimit.retention"))

	callerDAO := dao.NewCallerDAO(db.Neo4jDriver)

	services, err := service.InitializeServices(
		db.Neo4jDriver,
		auditService,
		tokenService,
		limiter,
		validationUtil,
		cacheService,
		notificationService,
		eventBus,
		service.PrivacySettings{
			DefaultEpsilon: config.GetFloat64("privacy.defaultEpsilon"),
			MaxEpsilon:     config.GetFloat64("privacy.maxEpsilon"),
			TokenTTL:       config.GetDuration("token.defaultTTL"),
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	controllers := controller.InitializeControllers(services, auditService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(controllers, callerDAO, limiter)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// runLimiterCleanup periodically deletes rate-limit buckets older than the
// retention horizon so counter storage stays bounded.
func runLimiterCleanup(ctx context.Context, limiter *ratelimit.Limiter, retention time.Duration) {
	if retention <= 0 {
		retention = ratelimit.DefaultRetention
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := limiter.Cleanup(ctx, retention)
			if err != nil {
				logger.Error("Rate-limit bucket cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("Cleaned up rate-limit buckets", zap.Int("deleted", deleted))
			}
		}
	}
}
