package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"coachpage_backend/internal/controller"
	"coachpage_backend/internal/middleware"
	"coachpage_backend/internal/model"
	"coachpage_backend/internal/reconciler"
	"coachpage_backend/pkg/billing"
	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/cron"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/seed"
	"coachpage_backend/pkg/utils/jwt"
	"coachpage_backend/pkg/utils/storage"
)

type application struct {
	db            *gorm.DB
	tokens        *jwt.Manager
	auth          *controller.AuthController
	posts         *controller.PostController
	uploads       *controller.UploadController
	subscriptions *controller.SubscriptionController
	stats         *controller.StatsController
}

func setupRoutes(app *fiber.App, a *application) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", a.auth.Register)
	auth.Post("/login", a.auth.Login)

	api.Get("/me", middleware.RequireAuth(a.tokens), a.auth.GetMe)

	// Content routes. Read paths degrade invalid credentials to anonymous;
	// write paths require a trainer.
	requireCreator := []fiber.Handler{
		middleware.RequireAuth(a.tokens),
		middleware.RequireRole(a.db, model.RoleTrainer, model.RoleAdmin),
	}

	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth(a.tokens), a.posts.ListPosts)
	posts.Post("/", append(requireCreator, a.posts.CreatePost)...)
	posts.Get("/:id", middleware.OptionalAuth(a.tokens), a.posts.GetPost)
	posts.Put("/:id", append(requireCreator, a.posts.UpdatePost)...)
	posts.Delete("/:id", append(requireCreator, a.posts.DeletePost)...)
	if a.uploads != nil {
		posts.Post("/:id/media", append(requireCreator, a.uploads.UploadPostMedia)...)
		posts.Delete("/media/:media_id", append(requireCreator, a.uploads.DeletePostMedia)...)
	}

	// Dashboard
	api.Get("/dashboard/stats", append(requireCreator, a.stats.GetDashboardStats)...)

	// Subscription routes
	subscriptions := api.Group("/subscription")
	subscriptions.Get("/pricing", a.subscriptions.GetPricing)
	subscriptions.Post("/free", middleware.RequireAuth(a.tokens), a.subscriptions.SubscribeFree)
	subscriptions.Post("/create-checkout-session", middleware.RequireAuth(a.tokens), a.subscriptions.CreateCheckoutSession)
	subscriptions.Post("/cancel", middleware.RequireAuth(a.tokens), a.subscriptions.CancelSubscription)
	subscriptions.Get("/status", middleware.RequireAuth(a.tokens), a.subscriptions.GetStatus)

	// Stripe checkout landings
	subscriptions.Get("/payment-success", a.subscriptions.HandleCheckoutSuccess)
	subscriptions.Get("/payment-cancelled", a.subscriptions.HandleCheckoutCancel)

	// Stripe webhook
	subscriptions.Post("/webhook", a.subscriptions.HandleWebhook)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := database.New(cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	log.Println("Database connected successfully!")

	if err := database.Migrate(db,
		&model.User{},
		&model.Post{},
		&model.PostMedia{},
	); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		seed.SeedDemoData(db)
	}

	var mailer *email.Service
	if cfg.Email.ResendAPIKey != "" {
		mailer, err = email.NewService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Fatal("Could not initialize email service:", err)
		}
	} else {
		log.Println("RESEND_API_KEY not set, email notifications disabled")
	}

	provider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.PriceID, cfg.ClientURL)
	rec := reconciler.New(db, mailer)
	tokens := jwt.NewManager(cfg.JWT.Secret)

	a := &application{
		db:            db,
		tokens:        tokens,
		auth:          controller.NewAuthController(db, tokens, mailer),
		posts:         controller.NewPostController(db),
		subscriptions: controller.NewSubscriptionController(db, provider, rec, cfg.Stripe.WebhookSecret, cfg.Stripe.PriceID),
		stats:         controller.NewStatsController(db),
	}

	mediaStorage, err := storage.NewMediaStorage(context.Background(), cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
	if err != nil {
		log.Printf("Media storage disabled: %v", err)
	} else {
		a.uploads = controller.NewUploadController(db, mediaStorage)
	}

	if _, err := cron.StartSubscriptionExpiryCron(db, mailer); err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
	}
	if _, err := cron.StartContentStatsCron(db, mailer); err != nil {
		log.Printf("Could not initialize content stats cron: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, a)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
