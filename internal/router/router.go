// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/handlers"
	"github.com/soundhaus/label-backend/internal/middleware"
	"github.com/soundhaus/label-backend/internal/services"
	"github.com/soundhaus/label-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	templateService := services.NewTemplateService(db)
	licenseService := services.NewLicenseService(db, cfg, templateService)
	ticketService := services.NewTicketService(cfg)
	pdfService := services.NewPDFService(cfg)
	checkoutService := services.NewCheckoutService(db, cfg)
	notificationService := services.NewNotificationService(cfg)
	storageService, _ := services.NewStorageService(cfg)
	redemptionService := services.NewRedemptionService(db)
	fulfillmentService := services.NewFulfillmentService(
		db, cfg, licenseService, ticketService, pdfService, storageService, notificationService)

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	webhookHandler := handlers.NewWebhookHandler(fulfillmentService, cfg)
	ticketHandler := handlers.NewTicketHandler(redemptionService, pdfService)
	licenseHandler := handlers.NewLicenseHandler(licenseService, pdfService)
	catalogHandler := handlers.NewCatalogHandler(db)
	adminHandler := handlers.NewAdminHandler(db, templateService, licenseService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Rate limiters (Redis-backed when configured)
	generalLimit := middleware.RateLimit(middleware.NewGeneralLimiter(cfg))
	checkoutLimit := middleware.RateLimit(middleware.NewCheckoutLimiter(cfg))

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Public catalog
		catalog := v1.Group("")
		catalog.Use(generalLimit)
		{
			catalog.GET("/beats", catalogHandler.GetBeats)
			catalog.GET("/beats/:id", catalogHandler.GetBeat)
			catalog.GET("/events", catalogHandler.GetEvents)
			catalog.GET("/events/:id", catalogHandler.GetEvent)
		}

		// Checkout
		checkout := v1.Group("/checkout")
		checkout.Use(checkoutLimit)
		{
			checkout.POST("/beats", checkoutHandler.CreateBeatCheckout)
			checkout.POST("/tickets", checkoutHandler.CreateTicketCheckout)
		}

		// Payment gateway callbacks. No rate limit: Stripe signs and retries.
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/beats", webhookHandler.HandleBeatWebhook)
			webhooks.POST("/tickets", webhookHandler.HandleTicketWebhook)
		}

		// Tickets
		tickets := v1.Group("/tickets")
		{
			tickets.GET("/verify/:code", generalLimit, ticketHandler.VerifyTicket)
			tickets.GET("/:code/download", generalLimit, ticketHandler.DownloadTicket)
			tickets.POST("/validate/:code",
				middleware.AuthRequired(), middleware.StaffRequired(), ticketHandler.ValidateTicket)
		}

		// Licenses
		licenses := v1.Group("/licenses")
		licenses.Use(generalLimit)
		{
			licenses.GET("/verify/:identifier", licenseHandler.VerifyLicense)
			licenses.GET("/:id/download", licenseHandler.DownloadLicense)
		}

		// Back office
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/alerts", adminHandler.GetAlerts)
			admin.PUT("/alerts/:id/resolve", adminHandler.ResolveAlert)
			admin.GET("/purchases", adminHandler.GetPurchases)
			admin.GET("/templates", adminHandler.GetTemplates)
			admin.POST("/templates", adminHandler.CreateTemplate)
			admin.PUT("/templates/:id/deactivate", adminHandler.DeactivateTemplate)
			admin.PUT("/licenses/:id/revoke", adminHandler.RevokeLicense)
		}
	}

	return r
}
