package loyalty

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/tresora/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxCodeAttempts bounds referral-code generation retries. Collisions
// are detected by the unique index on insert, not by a pre-check query,
// so two concurrent creations can never both claim the same code.
const maxCodeAttempts = 5

// TransactionInput describes one ledger mutation.
type TransactionInput struct {
	CustomerID        uuid.UUID
	Type              models.TransactionType
	Points            int64 // signed: positive credits, negative debits
	RelatedOrderID    *string
	RelatedCustomerID *uuid.UUID
	Description       string
	MetaData          models.JSON
	// SetReferredBy, when non-empty, records the redeemed referral code
	// on the account inside the same transaction as the balance update.
	// Fails with ErrReferralAlreadyClaimed if the field is already set,
	// so the claimed-check and the write cannot race.
	SetReferredBy string
}

// LedgerService owns loyalty accounts and the append-only transaction
// log. Apply is the sole mutation path for balances.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// GetAccount returns the account for a customer, or ErrAccountNotFound.
func (s *LedgerService) GetAccount(customerID uuid.UUID) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := s.db.Where("customer_id = ?", customerID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding loyalty account: %w", err)
	}
	return &account, nil
}

// GetAccountByReferralCode resolves the owner of a referral code.
func (s *LedgerService) GetAccountByReferralCode(code string) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := s.db.Where("referral_code = ?", code).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReferralCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding loyalty account by code: %w", err)
	}
	return &account, nil
}

// GetOrCreateAccount returns the customer's account, creating it with
// zero balances and a fresh referral code on first interaction.
// displayName seeds the vanity part of the code and may be empty.
func (s *LedgerService) GetOrCreateAccount(customerID uuid.UUID, displayName string) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount

	err := s.db.Where("customer_id = ?", customerID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding loyalty account: %w", err)
	}

	// Generate-then-insert: a uniqueness violation means either the
	// code collided or another worker created this account first.
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		account = models.LoyaltyAccount{
			CustomerID:   customerID,
			Tier:         models.TierBronze,
			ReferralCode: newReferralCode(displayName),
			IsEnabled:    true,
		}

		createErr := s.db.Create(&account).Error
		if createErr == nil {
			return &account, nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("error creating loyalty account: %w", createErr)
		}

		// Concurrent get-or-create for the same customer: return the
		// winner's row.
		var existing models.LoyaltyAccount
		if err := s.db.Where("customer_id = ?", customerID).First(&existing).Error; err == nil {
			return &existing, nil
		}
		// Otherwise the referral code collided; retry with a new one.
	}

	return nil, ErrCodeGenerationExhausted
}

// Apply atomically applies one transaction to an account: re-reads the
// balance under a row lock, rejects negative results, updates the
// denormalized totals and tier, and appends the transaction row with a
// balance_after snapshot. Returns ErrDuplicateTransaction when the
// storage layer rejects the insert on an idempotency key.
func (s *LedgerService) Apply(input TransactionInput, snap SettingsSnapshot) (*models.LoyaltyAccount, *models.LoyaltyTransaction, error) {
	var account models.LoyaltyAccount
	var transaction models.LoyaltyTransaction

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, nil, fmt.Errorf("error starting ledger transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Lock the account row for the duration of the operation. All
	// compound read-modify-write sequences for one account serialize
	// here.
	if err := lockForUpdate(tx).
		Where("customer_id = ?", input.CustomerID).First(&account).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("error locking loyalty account: %w", err)
	}

	if input.SetReferredBy != "" {
		if account.ReferredBy != "" {
			tx.Rollback()
			return nil, nil, ErrReferralAlreadyClaimed
		}
		account.ReferredBy = input.SetReferredBy
	}

	newBalance := account.PointsBalance + input.Points
	if newBalance < 0 {
		tx.Rollback()
		return nil, nil, ErrInsufficientPoints
	}

	account.PointsBalance = newBalance
	if credit := earnedCredit(input.Type, input.Points); credit > 0 {
		account.TotalEarned += credit
		info := TierFor(account.TotalEarned, snap)
		account.Tier = info.Tier
	}
	if debit := spentDebit(input.Type, input.Points); debit > 0 {
		account.TotalSpent += debit
	}

	if err := tx.Save(&account).Error; err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("error updating loyalty account: %w", err)
	}

	transaction = models.LoyaltyTransaction{
		CustomerID:        input.CustomerID,
		Type:              input.Type,
		PointsAmount:      input.Points,
		RelatedOrderID:    input.RelatedOrderID,
		RelatedCustomerID: input.RelatedCustomerID,
		Description:       input.Description,
		MetaData:          input.MetaData,
		BalanceAfter:      newBalance,
	}

	if err := tx.Create(&transaction).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrDuplicateTransaction
		}
		return nil, nil, fmt.Errorf("error appending loyalty transaction: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, fmt.Errorf("error committing ledger transaction: %w", err)
	}

	return &account, &transaction, nil
}

// lockForUpdate adds a row-level lock to the query. The sqlite driver
// drops the clause and serializes writers on the whole database
// instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// SetEnabled flips a customer's program membership without touching
// history. Updates only the flag; the toggle must never write back a
// stale balance over a concurrent applier's commit.
func (s *LedgerService) SetEnabled(customerID uuid.UUID, enabled bool) (*models.LoyaltyAccount, error) {
	result := s.db.Model(&models.LoyaltyAccount{}).
		Where("customer_id = ?", customerID).
		Update("is_enabled", enabled)
	if result.Error != nil {
		return nil, fmt.Errorf("error updating loyalty account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	return s.GetAccount(customerID)
}

// HasTransaction reports whether a transaction with the given
// idempotency key already exists. This is a fast path only; the unique
// index remains the authority under concurrency.
func (s *LedgerService) HasTransaction(customerID uuid.UUID, txType models.TransactionType, orderID *string) (bool, error) {
	query := s.db.Model(&models.LoyaltyTransaction{}).
		Where("customer_id = ? AND type = ?", customerID, txType)
	if orderID != nil {
		query = query.Where("related_order_id = ?", *orderID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("error checking existing transaction: %w", err)
	}
	return count > 0, nil
}

// FindTransaction fetches a ledger entry by idempotency key, for
// callers that lost the uniqueness race and want the winner's result.
func (s *LedgerService) FindTransaction(customerID uuid.UUID, txType models.TransactionType, orderID string) (*models.LoyaltyTransaction, error) {
	var transaction models.LoyaltyTransaction
	err := s.db.Where("customer_id = ? AND type = ? AND related_order_id = ?", customerID, txType, orderID).
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding loyalty transaction: %w", err)
	}
	return &transaction, nil
}

// earnedCredit returns the amount a transaction adds to totalEarned.
func earnedCredit(txType models.TransactionType, points int64) int64 {
	switch txType {
	case models.TransactionEarned, models.TransactionWelcome, models.TransactionReferral:
		return points
	case models.TransactionAdjustment:
		if points > 0 {
			return points
		}
	}
	return 0
}

// spentDebit returns the magnitude a transaction adds to totalSpent.
func spentDebit(txType models.TransactionType, points int64) int64 {
	switch txType {
	case models.TransactionSpent:
		return -points
	case models.TransactionAdjustment:
		if points < 0 {
			return -points
		}
	}
	return 0
}

// newReferralCode builds a candidate like "AMARA-7F3K2C". Uniqueness is
// enforced by the insert, not here.
func newReferralCode(displayName string) string {
	stem := strings.ToUpper(slug.Make(displayName))
	stem = strings.ReplaceAll(stem, "-", "")
	if len(stem) > 8 {
		stem = stem[:8]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	if stem == "" {
		return suffix
	}
	return stem + "-" + suffix
}
