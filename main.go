package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/cairocart/whatsapp-backend/database"
	"github.com/cairocart/whatsapp-backend/internal/models"
	"github.com/cairocart/whatsapp-backend/internal/routes"
	"github.com/cairocart/whatsapp-backend/internal/services"
	"github.com/cairocart/whatsapp-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found - checking environment variables")
	}

	// Initialize storage
	var store storage.Store
	var container *sqlstore.Container

	// Check if we should use memory store (for testing)
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		// Connect to database
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		// Run migrations
		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.WhatsAppSession{},
			&models.WhatsAppMessage{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)

		// The whatsmeow device store shares the service's connection pool
		sqlDB, err := database.DB.DB()
		if err != nil {
			log.Fatal("Failed to get SQL connection:", err)
		}
		container = sqlstore.NewWithDB(sqlDB, "postgres", waLog.Stdout("Database", "WARN", false))
		if err := container.Upgrade(context.Background()); err != nil {
			log.Fatal("Failed to upgrade WhatsApp device store:", err)
		}
		log.Println("✅ WhatsApp device store ready")
	}

	// Initialize services
	registry := services.NewSessionRegistry()
	whatsappService := services.NewWhatsAppService(store, registry, container)
	log.Println("✅ WhatsApp session service initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "WhatsApp Session Gateway v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Setup routes
	routes.SetupRoutes(app, store, whatsappService, registry)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Printf("⏹️  Tearing down %d active WhatsApp clients...", registry.Size())
		whatsappService.Shutdown(context.Background())
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 WhatsApp Session Gateway starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("🔐 API key auth: %s", getAuthStatus())
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getAuthStatus() string {
	if os.Getenv("API_KEY") == "" {
		return "Disabled"
	}
	return "Enabled"
}
