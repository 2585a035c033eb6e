// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/services"
)

// WebhookHandler terminates the two Stripe endpoints. Each endpoint has its
// own signing secret, so a beat event replayed against the ticket URL fails
// signature verification before any business code runs.
type WebhookHandler struct {
	fulfillmentService *services.FulfillmentService
	config             *config.Config
}

const maxWebhookBody = 65536

func NewWebhookHandler(fulfillmentService *services.FulfillmentService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		fulfillmentService: fulfillmentService,
		config:             cfg,
	}
}

// POST /webhooks/beats
func (h *WebhookHandler) HandleBeatWebhook(c *gin.Context) {
	h.handle(c, h.config.Stripe.BeatWebhookSecret, h.fulfillmentService.FulfillBeatPurchase)
}

// POST /webhooks/tickets
func (h *WebhookHandler) HandleTicketWebhook(c *gin.Context) {
	h.handle(c, h.config.Stripe.TicketWebhookSecret, h.fulfillmentService.FulfillTicketPurchase)
}

func (h *WebhookHandler) handle(c *gin.Context, secret string, fulfill func(string, *stripe.CheckoutSession) error) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
	if err != nil {
		logrus.WithError(err).Warn("Webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	// Everything except a completed checkout is acknowledged and ignored.
	if event.Type != "checkout.session.completed" {
		logrus.WithField("type", event.Type).Debug("Ignoring webhook event type")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		logrus.WithError(err).Error("Failed to parse checkout session from event")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	if err := fulfill(event.ID, &sess); err != nil {
		// Only infrastructure failures reach here; everything else was
		// alerted on and acknowledged. 503 makes the gateway retry later.
		logrus.WithError(err).WithField("event_id", event.ID).Error("Fulfillment failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unable to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
