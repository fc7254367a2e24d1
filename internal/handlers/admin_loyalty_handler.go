package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tresora/backend/internal/models"
	"github.com/tresora/backend/internal/services/loyalty"
)

// AdminLoyaltyHandler serves the operator-restricted loyalty endpoints
type AdminLoyaltyHandler struct {
	engine   *loyalty.Engine
	ledger   *loyalty.LedgerService
	settings *loyalty.SettingsService
}

// NewAdminLoyaltyHandler creates a new admin loyalty handler
func NewAdminLoyaltyHandler(engine *loyalty.Engine, ledger *loyalty.LedgerService, settings *loyalty.SettingsService) *AdminLoyaltyHandler {
	return &AdminLoyaltyHandler{engine: engine, ledger: ledger, settings: settings}
}

// pathCustomerID parses the :customerId path parameter
func pathCustomerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("customerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer ID"})
		return uuid.Nil, false
	}
	return id, true
}

// GetAccount looks up a customer's loyalty account
func (h *AdminLoyaltyHandler) GetAccount(c *gin.Context) {
	id, ok := pathCustomerID(c)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(id)
	if err != nil {
		respondLoyaltyError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// AdjustPoints applies a manual operator adjustment
func (h *AdminLoyaltyHandler) AdjustPoints(c *gin.Context) {
	id, ok := pathCustomerID(c)
	if !ok {
		return
	}

	var input struct {
		Amount      int64  `json:"amount" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.engine.AdjustPoints(id, input.Amount, input.Description)
	if err != nil {
		respondLoyaltyError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// SetAccountEnabled toggles a customer's program membership
func (h *AdminLoyaltyHandler) SetAccountEnabled(c *gin.Context) {
	id, ok := pathCustomerID(c)
	if !ok {
		return
	}

	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.ledger.SetEnabled(id, *input.Enabled)
	if err != nil {
		respondLoyaltyError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// GetSettings returns the current program settings
func (h *AdminLoyaltyHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load loyalty settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the program settings wholesale
func (h *AdminLoyaltyHandler) UpdateSettings(c *gin.Context) {
	var input models.LoyaltySettings
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settings.Update(input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}
