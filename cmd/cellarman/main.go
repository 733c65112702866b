package main

import (
	"context"
	"strings"
	"time"

	"github.com/anishghanwat/StoreMyBottleApp/internal/cellar"
	"github.com/anishghanwat/StoreMyBottleApp/internal/handlers"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/auth"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/config"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/database"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/kafka"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/monitoring"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/redis"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/server"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("cellarman")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Cellarman (Bottle Redemption API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("cellarman", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("cellarman", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"JWT_SECRET":   jwtSecret,
	}))

	// Create custom redemption metrics
	metrics := &handlers.CellarmanMetrics{
		TokensIssued: metricsCollector.NewCounter("tokens_issued_total", "Redemption tokens issued", []string{"outcome"}),
		Settlements:  metricsCollector.NewCounter("settlements_total", "Settlement attempts", []string{"outcome"}),
		TokensSwept:  metricsCollector.NewCounter("tokens_swept_total", "Tokens expired by the sweep job", []string{}).WithLabelValues(),
		Purchases:    metricsCollector.NewCounter("purchase_operations_total", "Purchase operations", []string{"operation", "status"}),
	}
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	engineOpts := []cellar.Option{cellar.WithMetrics(metrics.EngineMetrics())}

	// Optional display cache
	if redisURL := config.GetEnv("REDIS_URL", ""); redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisClient, err := redis.NewClientFromURL(ctx, redisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, display cache disabled")
		} else {
			defer redisClient.Close()
			healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
			cacheTTL := config.GetEnvDuration("DISPLAY_CACHE_TTL", 10*time.Minute)
			engineOpts = append(engineOpts, cellar.WithCache(cellar.NewDisplayCache(redisClient, logger, cacheTTL)))
		}
	}

	// Optional redemption event stream
	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		topic := config.GetEnv("REDEMPTION_KAFKA_TOPIC", "cellarman.redemptions")
		producer, err := kafka.NewProducer(strings.Split(brokers, ","), topic, "cellarman", logger)
		if err != nil {
			logger.WithError(err).Warn("Kafka unavailable, redemption events disabled")
		} else {
			defer producer.Close()
			healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
			engineOpts = append(engineOpts, cellar.WithPublisher(producer))
		}
	}

	// Initialize the redemption engine and handlers
	engine := cellar.NewEngine(db, logger, cellar.ConfigFromEnv(), engineOpts...)
	handlers.Init(db, logger, engine, metrics)

	// Start background jobs (expiry sweep)
	jobManager := handlers.NewJobManager(db, logger, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobManager.Start(ctx)
	defer jobManager.Stop()

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "cellarman", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/ prefix)
	{
		authenticated := router.Group("")
		authenticated.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			// Customer endpoints
			authenticated.POST("/purchases", handlers.CreatePurchase)
			authenticated.POST("/purchases/:purchase_id/confirm", handlers.ConfirmPurchase)
			authenticated.GET("/purchases/my-bottles", handlers.GetMyBottles)
			authenticated.GET("/purchases/history", handlers.GetPurchaseHistory)
			authenticated.GET("/purchases/:purchase_id", handlers.GetPurchase)
			authenticated.POST("/redemptions/generate-qr", handlers.GenerateRedemptionQR)
			authenticated.GET("/redemptions/history", handlers.GetRedemptionHistory)
			authenticated.GET("/redemptions/:redemption_id", handlers.GetRedemption)

			// Bartender endpoints
			staff := authenticated.Group("")
			staff.Use(auth.RequireRole(auth.RoleBartender, auth.RoleAdmin))
			{
				staff.POST("/purchases/:purchase_id/process", handlers.ProcessPurchase)
				staff.GET("/purchases/venue/:venue_id/pending", handlers.GetPendingPurchases)
				staff.POST("/redemptions/validate", handlers.ValidateRedemptionQR)
				staff.GET("/redemptions/venue/:venue_id/recent", handlers.GetVenueRecentRedemptions)
			}
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("cellarman", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
