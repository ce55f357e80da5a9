package routes

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/handlers"
	"github.com/curodigital/whatsapp-billing-relay/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	messageHandler *handlers.MessageHandler,
	webhookHandler *handlers.WebhookHandler,
	billingHandler *handlers.BillingHandler,
	schedulerHandler *handlers.SchedulerHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Relay surface. Paths are part of the integration contract with the
	// WhatsApp provider and Inspire, so they live at the root, unversioned.
	e.POST("/whatsapp-status-webhook", webhookHandler.HandleStatusWebhook)
	e.POST("/client-send-message", messageHandler.SendClientMessage)
	e.POST("/receive-reply", messageHandler.ReceiveReply)
	e.GET("/botforce-get-latest-tracking/:recipient_number", messageHandler.GetLatestTracking)
	e.GET("/get-message-status", messageHandler.GetMessageStatus)

	// API v1 base group
	v1 := e.Group("/api/v1")

	// Billing routes with their own API key
	billing := v1.Group("/billing", middlewares.APIKeyAuth(cfg.Auth.BillingAPIKey))

	billing.GET("/stats", billingHandler.GetStats)
	billing.GET("/report", billingHandler.GetReport)
	billing.GET("/validate", billingHandler.Validate)

	messages := v1.Group("/messages", middlewares.APIKeyAuth(cfg.Auth.BillingAPIKey))

	messages.GET("/stats", messageHandler.GetStats)

	// Scheduler routes with their own API key
	schedulerGroup := v1.Group("/scheduler", middlewares.APIKeyAuth(cfg.Auth.SchedulerAPIKey))

	schedulerGroup.POST("/start", schedulerHandler.StartScheduler)
	schedulerGroup.POST("/stop", schedulerHandler.StopScheduler)
	schedulerGroup.GET("/status", schedulerHandler.GetSchedulerStatus)
}
