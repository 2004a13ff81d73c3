package server

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agrovest/backend/internal/config"
	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/handler"
	"github.com/agrovest/backend/internal/middleware"
	"github.com/agrovest/backend/internal/notify"
	"github.com/agrovest/backend/internal/repository"
	"github.com/agrovest/backend/internal/service"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
}

// App bundles the Fiber application with the background sweeper so the
// entry point can register it on the scheduler.
type App struct {
	Fiber   *fiber.App
	Sweeper *service.MaturitySweeper
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *App {
	// Initialize repositories
	investmentRepo := repository.NewMongoInvestmentRepository(deps.MongoDB)
	userRepo := repository.NewMongoUserRepository(deps.MongoDB)
	cacheRepo := repository.NewRedisCacheRepository(deps.RedisClient)

	var receiptStore domain.ReceiptStore
	if deps.Config.S3.Endpoint != "" {
		s3Repo, err := repository.NewS3ReceiptRepository(context.Background(), deps.Config.S3)
		if err != nil {
			log.Printf("Warning: Failed to initialize receipt storage: %v", err)
		} else {
			receiptStore = s3Repo
		}
	} else {
		log.Println("[Server] Receipt storage disabled (no S3 endpoint configured)")
	}

	notifier := notify.NewNotifier(deps.Config.SMTP)
	gateway := service.NewPaymentGateway(deps.Config.Flutterwave)

	// Initialize services
	lifecycleService := service.NewLifecycleService(investmentRepo, userRepo, cacheRepo, notifier)
	reconcileService := service.NewReconciliationService(investmentRepo, lifecycleService, gateway, userRepo, cacheRepo)
	sweeper := service.NewMaturitySweeper(investmentRepo, lifecycleService)

	// Initialize handlers
	investmentHandler := handler.NewInvestmentHandler(lifecycleService, sweeper)
	paymentHandler := handler.NewPaymentHandler(reconcileService, lifecycleService, receiptStore)
	webhookHandler := handler.NewWebhookHandler(reconcileService, deps.Config.Flutterwave.SecretHash)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AgroVest Investment API",
		BodyLimit:    int(deps.Config.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, verif-hash",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "agrovest-backend",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	// Public catalog
	v1.Get("/plans", investmentHandler.ListPlans)

	// Gateway webhook (public, signature-authenticated)
	v1.Post("/payments/webhook", webhookHandler.FlutterwaveWebhook)

	// ===========================================
	// INVESTOR API (requires 'investor' role)
	// ===========================================
	investments := v1.Group("/investments")
	investments.Use(middleware.VerifyAccessToken(deps.Config.JWT.Secret))
	investments.Use(middleware.AuthorizeRole(domain.RoleInvestor, domain.RoleAdmin))
	investments.Post("/", investmentHandler.Create)
	investments.Get("/", investmentHandler.ListMine)

	payments := v1.Group("/payments")
	payments.Use(middleware.VerifyAccessToken(deps.Config.JWT.Secret))
	payments.Use(middleware.AuthorizeRole(domain.RoleInvestor, domain.RoleAdmin))
	payments.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Config.Server.IdempotencyTTL))
	payments.Post("/initiate", paymentHandler.InitiateGateway)
	payments.Post("/manual", paymentHandler.SubmitManual)
	payments.Get("/verify", paymentHandler.Verify)

	// ===========================================
	// ADMIN API - /v1/admin/* (requires 'admin' role)
	// ===========================================
	admin := v1.Group("/admin")
	admin.Use(middleware.VerifyAccessToken(deps.Config.JWT.Secret))
	admin.Use(middleware.AuthorizeRole(domain.RoleAdmin))

	adminInvestments := admin.Group("/investments")
	adminInvestments.Get("/", investmentHandler.ListAll)
	adminInvestments.Post("/:id/approve", paymentHandler.ApproveManual)
	adminInvestments.Put("/:id/status", investmentHandler.UpdateStatus)
	adminInvestments.Delete("/:id", investmentHandler.DeleteStale)

	admin.Post("/maturity-check", investmentHandler.TriggerMaturityCheck)

	return &App{
		Fiber:   app,
		Sweeper: sweeper,
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
