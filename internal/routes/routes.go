package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"carebook-server/internal/booking"
	"carebook-server/internal/chat"
	"carebook-server/internal/config"
	"carebook-server/internal/handlers"
	"carebook-server/internal/logging"
	"carebook-server/internal/middleware"
	"carebook-server/internal/models"
	"carebook-server/internal/payments"
	"carebook-server/internal/reviews"
)

// Dependencies carries the external collaborators the route handlers need.
type Dependencies struct {
	IntentClient payments.IntentClient
	Responder    chat.Responder
	Logger       *logging.Logger
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, deps Dependencies) {
	log := deps.Logger
	if log == nil {
		log = logging.Default()
	}

	store := booking.NewStore(db, log)
	coordinator := payments.NewCoordinator(store, deps.IntentClient, log)
	reconciler := payments.NewReconciler(db, store, cfg.Stripe.WebhookSecret, log)
	aggregator := reviews.NewAggregator(db, log)
	assistant := chat.NewAssistant(deps.Responder, log)

	authHandler := handlers.NewAuthHandler(db, cfg)
	appointmentHandler := handlers.NewAppointmentHandler(store, log)
	paymentHandler := handlers.NewPaymentHandler(coordinator, reconciler, log)
	specialistHandler := handlers.NewSpecialistHandler(db, aggregator, log)
	chatHandler := handlers.NewChatHandler(assistant, log)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// The processor authenticates with its signature, not a JWT.
		public.POST("/payments/webhook", paymentHandler.Webhook)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
		}

		private.POST("/payments/intent", paymentHandler.CreateIntent)

		specialistRoutes := private.Group("/specialists")
		{
			specialistRoutes.GET("", specialistHandler.GetSpecialists)
			specialistRoutes.GET("/:id", specialistHandler.GetSpecialistByID)
			specialistRoutes.GET("/:id/reviews", specialistHandler.GetReviews)
			specialistRoutes.POST("/:id/reviews", specialistHandler.CreateReview)

			adminRoutes := specialistRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", specialistHandler.CreateSpecialist)
			}
		}

		private.POST("/chat", chatHandler.Ask)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
