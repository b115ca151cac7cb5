package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"carebook-server/internal/chat"
	"carebook-server/internal/config"
	"carebook-server/internal/logging"
	"carebook-server/internal/models"
	"carebook-server/internal/payments"
	"carebook-server/internal/routes"
)

func main() {
	// Load environment variables; a missing .env is fine in deployed environments.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger := logging.New(cfg.Environment)
	defer logger.Sync() //nolint:errcheck

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatalw("error connecting to database", "error", err)
	}

	// Payment processor client
	intentClient := payments.NewStripeClient(cfg.Stripe.SecretKey)

	// AI health assistant model; the chat endpoint degrades gracefully
	// when no key is configured.
	var responder chat.Responder
	if cfg.Gemini.APIKey != "" {
		gemini, err := chat.NewGeminiResponder(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Fatalw("error creating gemini client", "error", err)
		}
		defer gemini.Close() //nolint:errcheck
		responder = gemini
	} else {
		logger.Warnw("GEMINI_API_KEY not set; chat assistant disabled")
	}

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, db, cfg, routes.Dependencies{
		IntentClient: intentClient,
		Responder:    responder,
		Logger:       logger,
	})

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Infow("server starting", "port", cfg.Port)
	if err := router.Run(serverAddr); err != nil {
		logger.Fatalw("failed to start server", "error", err)
	}
}
