package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"prospectflow/config"
	controller "prospectflow/controllers"
	"prospectflow/middleware"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize logger
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/api/v1/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	if config.AppConfig.Redis.Enabled {
		auth.Use(middleware.AuthRateLimiter())
	}

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/forgot-password", controller.ForgotPassword)
	auth.Post("/reset-password", controller.ResetPassword)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Post("/google", controller.GoogleAuth)
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	// Log initialization
	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize controllers with their respective loggers
	listController := controller.NewListController(db, log.New(os.Stdout, "LIST: ", log.LstdFlags))
	contactController := controller.NewContactController(db, log.New(os.Stdout, "CONTACT: ", log.LstdFlags))
	activityController := controller.NewActivityController(db, log.New(os.Stdout, "ACTIVITY: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// List routes
	list := api.Group("/lists")
	list.Post("/", listController.CreateList)
	list.Get("/", listController.GetLists)
	list.Post("/preview", listController.PreviewUpload)
	list.Get("/:id", listController.GetList)
	list.Put("/:id", listController.UpdateList)
	list.Patch("/:id/settings", listController.UpdateListSettings)
	list.Delete("/:id", listController.DeleteList)
	list.Get("/:id/stats", listController.GetListStats)
	list.Post("/:id/import", listController.ReimportContacts)
	list.Get("/:id/mappings", listController.GetColumnMappings)
	list.Put("/:id/mappings", listController.UpdateColumnMappings)
	list.Post("/:id/geocode", listController.StartGeocoding)
	list.Get("/:id/geocode", listController.GetGeocodingStatus)
	list.Get("/:id/contacts", contactController.GetContacts)

	// Export route with rate limiting when Redis is configured
	if config.AppConfig.Redis.Enabled {
		list.Get("/:id/export", middleware.ExportRateLimiter(), contactController.ExportContacts)
	} else {
		list.Get("/:id/export", contactController.ExportContacts)
	}

	// Contact routes
	contact := api.Group("/contacts")
	contact.Post("/bulk-delete", contactController.BulkDeleteContacts)
	contact.Get("/:id", contactController.GetContact)
	contact.Patch("/:id", contactController.UpdateContact)
	contact.Delete("/:id", contactController.DeleteContact)
	contact.Post("/:id/toggle-pipeline", contactController.TogglePipeline)
	contact.Get("/:id/activities", activityController.GetActivities)
	contact.Post("/:id/activities", activityController.CreateActivity)

	// Activity routes
	activity := api.Group("/activities")
	activity.Put("/:id", activityController.UpdateActivity)
	activity.Delete("/:id", activityController.DeleteActivity)

	// WebSocket route for geocoding progress
	app.Get("/api/v1/ws/lists/:id/progress", middleware.Protected(), websocket.New(func(c *websocket.Conn) {
		controller.HandleGeocodingProgressWS(c)
	}))

	// Log initialization
	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
