package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tresora/backend/internal/config"
	"github.com/tresora/backend/internal/jobs"
	"github.com/tresora/backend/internal/utils"
)

// EventHandler ingests storefront webhooks and queues them for the
// loyalty engine. Delivery is at-least-once upstream, so intake only
// validates the envelope and acknowledges; the job handlers absorb
// duplicates.
type EventHandler struct {
	events *jobs.LoyaltyEventJob
	cfg    config.WebhookConfig
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *jobs.LoyaltyEventJob, cfg config.WebhookConfig) *EventHandler {
	return &EventHandler{events: events, cfg: cfg}
}

// readVerifiedBody reads the raw body and checks the webhook signature
func (h *EventHandler) readVerifiedBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}

	if h.cfg.Secret != "" {
		signature := c.GetHeader("X-Webhook-Signature")
		if !utils.VerifyHMAC(string(body), signature, h.cfg.Secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return nil, false
		}
	}

	return body, true
}

// bindJSON unmarshals an already-read body
func bindJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}

// OrderPlaced handles the order-placed storefront event
func (h *EventHandler) OrderPlaced(c *gin.Context) {
	body, ok := h.readVerifiedBody(c)
	if !ok {
		return
	}

	var payload jobs.OrderPlacedPayload
	if err := bindJSON(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order placed payload"})
		return
	}

	jobID, err := h.events.EnqueueOrderPlaced(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// CustomerCreated handles the customer-created storefront event
func (h *EventHandler) CustomerCreated(c *gin.Context) {
	body, ok := h.readVerifiedBody(c)
	if !ok {
		return
	}

	var payload jobs.CustomerCreatedPayload
	if err := bindJSON(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer created payload"})
		return
	}

	jobID, err := h.events.EnqueueCustomerCreated(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}
