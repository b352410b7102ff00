package router

import (
	"log"

	"github.com/bcetconnect/backend/internal/handlers"
	"github.com/bcetconnect/backend/internal/media"
	"github.com/bcetconnect/backend/internal/metrics"
	"github.com/bcetconnect/backend/internal/middleware"
	"github.com/bcetconnect/backend/internal/models"
	"github.com/bcetconnect/backend/internal/realtime"
	"github.com/bcetconnect/backend/internal/repositories"
	"github.com/bcetconnect/backend/internal/services"
	"github.com/bcetconnect/backend/pkg/config"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, registry *realtime.Registry, collector *metrics.Collector) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.CommunityMembership{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check and metrics - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	feedRepo := repositories.NewMongoFeedRepository(mgClient.Database(cfg.MongoDBName))

	// --- Services ---
	notificationService := services.NewNotificationService(notificationRepo, userRepo, registry, collector)

	var mediaCleaner media.Cleaner = media.NopCleaner{}
	if cfg.CloudinaryCloudName != "" {
		mediaCleaner = media.NewCloudinaryCleaner(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		log.Println("Cloudinary media cleanup configured.")
	}

	// --- Realtime endpoint (authenticates during the handshake) ---
	socketHandler := handlers.NewSocketHandler(registry, userRepo, notificationService, collector, cfg.JWTSecret)
	socketHandler.RegisterSocketRoutes(e)
	log.Println("Realtime notification socket configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	api.Use(rateLimiter.Middleware())
	log.Println("JWT authentication and rate limiting applied to /api/v1 group.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationService, userRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	notificationHandler.RegisterAdminRoutes(api)
	log.Println("Notification routes configured.")

	// Feed routes
	feedHandler := handlers.NewFeedHandler(feedRepo, userRepo, followRepo, notificationService, mediaCleaner)
	feedHandler.RegisterFeedRoutes(api)
	log.Println("Feed routes configured.")

	// Follow routes
	followHandler := handlers.NewFollowHandler(followRepo, userRepo, notificationService)
	followHandler.RegisterFollowRoutes(api)
	log.Println("Follow routes configured.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo, followRepo)
	userHandler.RegisterUserRoutes(api)
	log.Println("User routes configured.")

	log.Println("All routes configured.")
}
