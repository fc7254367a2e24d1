package loyalty

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tresora/backend/internal/models"
)

// Engine orchestrates the loyalty business rules on top of the ledger.
// Every operation captures one settings snapshot at the start of the
// call and is safe to invoke repeatedly: duplicate event deliveries
// resolve to no-ops against the ledger's idempotency keys.
type Engine struct {
	ledger   *LedgerService
	settings *SettingsService
}

// NewEngine creates a new awarding engine
func NewEngine(ledger *LedgerService, settings *SettingsService) *Engine {
	return &Engine{ledger: ledger, settings: settings}
}

// SpendResult is returned by SpendOnOrder.
type SpendResult struct {
	Spent         int64 `json:"spent"`
	DiscountValue int64 `json:"discount_value"`
	NewBalance    int64 `json:"new_balance"`
}

// AwardWelcomeBonus grants the one-time welcome bonus. Redelivered
// customer-created events are absorbed: if a welcome transaction
// already exists the current state is returned unchanged.
func (e *Engine) AwardWelcomeBonus(customerID uuid.UUID, displayName string) (*models.LoyaltyAccount, error) {
	snap, err := e.settings.Snapshot()
	if err != nil {
		return nil, err
	}

	account, err := e.ledger.GetOrCreateAccount(customerID, displayName)
	if err != nil {
		return nil, err
	}
	if !snap.Enabled || !account.IsEnabled {
		return account, nil
	}

	exists, err := e.ledger.HasTransaction(customerID, models.TransactionWelcome, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return account, nil
	}

	updated, _, err := e.ledger.Apply(TransactionInput{
		CustomerID:  customerID,
		Type:        models.TransactionWelcome,
		Points:      snap.WelcomeBonusPoints,
		Description: "Welcome bonus",
	}, snap)
	if errors.Is(err, ErrDuplicateTransaction) {
		// A concurrent delivery won the race; its state is ours too.
		return e.ledger.GetAccount(customerID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EarnFromOrder awards points for a placed order, idempotent per
// (customer, order, earned). orderTotal is in currency minor units.
// The multiplier comes from the account's tier before this order.
func (e *Engine) EarnFromOrder(customerID uuid.UUID, orderID string, orderTotal int64) (*models.LoyaltyAccount, error) {
	if orderTotal <= 0 {
		return nil, ErrInvalidOrderTotal
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrInvalidOrderID
	}

	snap, err := e.settings.Snapshot()
	if err != nil {
		return nil, err
	}

	account, err := e.ledger.GetOrCreateAccount(customerID, "")
	if err != nil {
		return nil, err
	}
	if !snap.Enabled || !account.IsEnabled {
		return account, nil
	}

	exists, err := e.ledger.HasTransaction(customerID, models.TransactionEarned, &orderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return account, nil
	}

	base := orderTotal * snap.EarnRateBps / 10000
	points := base * MultiplierForTier(account.Tier, snap) / 10000

	updated, _, err := e.ledger.Apply(TransactionInput{
		CustomerID:     customerID,
		Type:           models.TransactionEarned,
		Points:         points,
		RelatedOrderID: &orderID,
		Description:    fmt.Sprintf("Points earned on order %s", orderID),
	}, snap)
	if errors.Is(err, ErrDuplicateTransaction) {
		return e.ledger.GetAccount(customerID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SpendOnOrder redeems points against an order, idempotent per
// (customer, order, spent). The caller has usually already quoted the
// cap; the engine still enforces it authoritatively.
func (e *Engine) SpendOnOrder(customerID uuid.UUID, orderID string, pointsRequested, orderTotal int64) (*SpendResult, error) {
	if orderTotal <= 0 {
		return nil, ErrInvalidOrderTotal
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrInvalidOrderID
	}
	if pointsRequested <= 0 {
		return nil, ErrInvalidPointsAmount
	}

	snap, err := e.settings.Snapshot()
	if err != nil {
		return nil, err
	}

	account, err := e.ledger.GetOrCreateAccount(customerID, "")
	if err != nil {
		return nil, err
	}
	if !snap.Enabled || !account.IsEnabled {
		// Feature off is a normal state: nothing is deducted.
		return &SpendResult{NewBalance: account.PointsBalance}, nil
	}

	if result, err := e.existingSpend(account, orderID, snap); err != nil || result != nil {
		return result, err
	}

	cap := orderTotal * snap.SpendCapBps / 10000
	if pointsRequested > cap {
		return nil, ErrExceedsSpendCap
	}
	if pointsRequested > account.PointsBalance {
		return nil, ErrInsufficientPoints
	}

	updated, _, err := e.ledger.Apply(TransactionInput{
		CustomerID:     customerID,
		Type:           models.TransactionSpent,
		Points:         -pointsRequested,
		RelatedOrderID: &orderID,
		Description:    fmt.Sprintf("Points redeemed on order %s", orderID),
	}, snap)
	if errors.Is(err, ErrDuplicateTransaction) {
		// Lost the race with a concurrent call for the same order;
		// report the winner's outcome instead of double-deducting.
		account, err = e.ledger.GetAccount(customerID)
		if err != nil {
			return nil, err
		}
		result, err := e.existingSpend(account, orderID, snap)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, fmt.Errorf("spend for order %s vanished after duplicate rejection", orderID)
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	return &SpendResult{
		Spent:         pointsRequested,
		DiscountValue: pointsRequested * snap.RedeemRateBps / 10000,
		NewBalance:    updated.PointsBalance,
	}, nil
}

// existingSpend returns the recorded outcome when this order was
// already redeemed.
func (e *Engine) existingSpend(account *models.LoyaltyAccount, orderID string, snap SettingsSnapshot) (*SpendResult, error) {
	transaction, err := e.ledger.FindTransaction(account.CustomerID, models.TransactionSpent, orderID)
	if err != nil || transaction == nil {
		return nil, err
	}
	spent := -transaction.PointsAmount
	return &SpendResult{
		Spent:         spent,
		DiscountValue: spent * snap.RedeemRateBps / 10000,
		NewBalance:    account.PointsBalance,
	}, nil
}

// AwardReferral redeems a referral code for the calling customer and
// credits both sides. The referee's bonus and the referred-by write
// happen in one atomic ledger operation; the referrer's bonus is a
// second, independently idempotent operation. A scheduled sweep repairs
// a crash between the two.
func (e *Engine) AwardReferral(customerID uuid.UUID, code string) (*models.LoyaltyAccount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidReferralCode
	}

	snap, err := e.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snap.Enabled {
		return nil, ErrProgramDisabled
	}

	account, err := e.ledger.GetOrCreateAccount(customerID, "")
	if err != nil {
		return nil, err
	}
	if !account.IsEnabled {
		return nil, ErrAccountDisabled
	}
	if account.ReferralCode == code {
		return nil, ErrSelfReferral
	}
	if account.ReferredBy != "" {
		return nil, ErrReferralAlreadyClaimed
	}

	referrer, err := e.ledger.GetAccountByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if referrer.CustomerID == customerID {
		return nil, ErrSelfReferral
	}
	// A disabled account is out of the program; its code is dead.
	if !referrer.IsEnabled {
		return nil, ErrReferralCodeNotFound
	}

	updated, _, err := e.ledger.Apply(TransactionInput{
		CustomerID:        customerID,
		Type:              models.TransactionReferral,
		Points:            snap.ReferralBonusPoints,
		RelatedCustomerID: &referrer.CustomerID,
		Description:       fmt.Sprintf("Referral bonus for joining with code %s", code),
		SetReferredBy:     code,
	}, snap)
	if err != nil {
		return nil, err
	}

	if err := e.CreditReferrer(referrer.CustomerID, customerID, snap); err != nil {
		// The referee side is committed; the reconciliation sweep will
		// complete the referrer side if this retry path never runs.
		return nil, fmt.Errorf("referee credited but referrer credit failed: %w", err)
	}

	return updated, nil
}

// CreditReferrer applies the referrer half of a referral bonus,
// idempotent per (referrer, referral, referee). Shared by AwardReferral
// and the reconciliation sweep.
func (e *Engine) CreditReferrer(referrerID, refereeID uuid.UUID, snap SettingsSnapshot) error {
	referrer, err := e.ledger.GetAccount(referrerID)
	if err != nil {
		return err
	}
	// Accounts disabled between the two halves earn nothing.
	if !referrer.IsEnabled {
		return nil
	}

	_, _, err = e.ledger.Apply(TransactionInput{
		CustomerID:        referrerID,
		Type:              models.TransactionReferral,
		Points:            snap.ReferralBonusPoints,
		RelatedCustomerID: &refereeID,
		Description:       "Referral bonus for inviting a friend",
	}, snap)
	if errors.Is(err, ErrDuplicateTransaction) {
		return nil
	}
	return err
}

// AdjustPoints applies an operator adjustment. Negative amounts are
// rejected by the ledger if they would drive the balance below zero.
func (e *Engine) AdjustPoints(customerID uuid.UUID, amount int64, description string) (*models.LoyaltyAccount, error) {
	if amount == 0 {
		return nil, ErrInvalidAdjustment
	}

	snap, err := e.settings.Snapshot()
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.GetAccount(customerID); err != nil {
		return nil, err
	}

	if description == "" {
		description = "Manual adjustment"
	}

	updated, _, err := e.ledger.Apply(TransactionInput{
		CustomerID:  customerID,
		Type:        models.TransactionAdjustment,
		Points:      amount,
		Description: description,
	}, snap)
	if err != nil {
		return nil, err
	}
	return updated, nil
}
