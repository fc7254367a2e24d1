package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tresora/backend/internal/services/loyalty"
)

// LoyaltyHandler serves the customer-facing loyalty endpoints
type LoyaltyHandler struct {
	engine   *loyalty.Engine
	query    *loyalty.QueryService
	ledger   *loyalty.LedgerService
	settings *loyalty.SettingsService
}

// NewLoyaltyHandler creates a new loyalty handler
func NewLoyaltyHandler(engine *loyalty.Engine, query *loyalty.QueryService, ledger *loyalty.LedgerService, settings *loyalty.SettingsService) *LoyaltyHandler {
	return &LoyaltyHandler{engine: engine, query: query, ledger: ledger, settings: settings}
}

// customerID pulls the authenticated customer out of the request context
func customerID(c *gin.Context) (uuid.UUID, bool) {
	idStr := c.GetString("customer_id")
	if idStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer ID"})
		return uuid.Nil, false
	}
	return id, true
}

// GetSummary returns the customer's loyalty summary. Responds 204 when
// the program or the account is disabled: feature off, not an error.
func (h *LoyaltyHandler) GetSummary(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}

	summary, err := h.query.GetSummary(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get loyalty summary"})
		return
	}
	if summary == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetTransactionHistory returns a page of the customer's ledger history
func (h *LoyaltyHandler) GetTransactionHistory(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, total, err := h.query.GetTransactionHistory(id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transaction history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// QuoteCheckout returns earn/spend numbers for an order without
// changing any state
func (h *LoyaltyHandler) QuoteCheckout(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}

	var input struct {
		OrderTotal      int64 `json:"order_total" binding:"required"`
		PointsRequested int64 `json:"points_requested"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.settings.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load loyalty settings"})
		return
	}

	account, err := h.ledger.GetOrCreateAccount(id, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load loyalty account"})
		return
	}

	quote := loyalty.QuoteCheckout(input.OrderTotal, input.PointsRequested, account.PointsBalance, account.Tier, snap)
	c.JSON(http.StatusOK, quote)
}

// SpendOnOrder redeems points at order completion. Called by the
// checkout service with the same inputs it quoted.
func (h *LoyaltyHandler) SpendOnOrder(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}

	var input struct {
		OrderID         string `json:"order_id" binding:"required"`
		PointsRequested int64  `json:"points_requested" binding:"required"`
		OrderTotal      int64  `json:"order_total" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.SpendOnOrder(id, input.OrderID, input.PointsRequested, input.OrderTotal)
	if err != nil {
		respondLoyaltyError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RedeemReferral redeems a free-text referral code for the caller
func (h *LoyaltyHandler) RedeemReferral(c *gin.Context) {
	id, ok := customerID(c)
	if !ok {
		return
	}

	var input struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.engine.AwardReferral(id, input.Code)
	if err != nil {
		respondLoyaltyError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// respondLoyaltyError maps business errors onto HTTP statuses
func respondLoyaltyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, loyalty.ErrInvalidOrderTotal),
		errors.Is(err, loyalty.ErrInvalidOrderID),
		errors.Is(err, loyalty.ErrInvalidPointsAmount),
		errors.Is(err, loyalty.ErrInvalidAdjustment),
		errors.Is(err, loyalty.ErrInvalidReferralCode),
		errors.Is(err, loyalty.ErrSelfReferral):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, loyalty.ErrAccountNotFound),
		errors.Is(err, loyalty.ErrReferralCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, loyalty.ErrReferralAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, loyalty.ErrExceedsSpendCap):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, loyalty.ErrProgramDisabled),
		errors.Is(err, loyalty.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
