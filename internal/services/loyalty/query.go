package loyalty

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tresora/backend/internal/models"
	"gorm.io/gorm"
)

// Summary is the customer-facing projection of an account.
type Summary struct {
	CustomerID       uuid.UUID   `json:"customer_id"`
	PointsBalance    int64       `json:"points_balance"`
	TotalEarned      int64       `json:"total_earned"`
	TotalSpent       int64       `json:"total_spent"`
	Tier             models.Tier `json:"tier"`
	MultiplierBps    int64       `json:"multiplier_bps"`
	ReferralCode     string      `json:"referral_code"`
	ReferredBy       string      `json:"referred_by,omitempty"`
	NextTier         models.Tier `json:"next_tier,omitempty"`
	PointsToNextTier int64       `json:"points_to_next_tier"`
	ProgressPercent  int         `json:"progress_percent"`
}

// QueryService is the read-only surface over the ledger.
type QueryService struct {
	db       *gorm.DB
	ledger   *LedgerService
	settings *SettingsService
}

// NewQueryService creates a new query service
func NewQueryService(db *gorm.DB, ledger *LedgerService, settings *SettingsService) *QueryService {
	return &QueryService{db: db, ledger: ledger, settings: settings}
}

// GetSummary returns the account projection, or nil when the program or
// the account is disabled. Creates the account on first interaction so
// the customer always has a referral code to share.
func (s *QueryService) GetSummary(customerID uuid.UUID) (*Summary, error) {
	snap, err := s.settings.Snapshot()
	if err != nil {
		return nil, err
	}
	if !snap.Enabled {
		return nil, nil
	}

	account, err := s.ledger.GetOrCreateAccount(customerID, "")
	if err != nil {
		return nil, err
	}
	if !account.IsEnabled {
		return nil, nil
	}

	info := TierFor(account.TotalEarned, snap)
	return &Summary{
		CustomerID:       account.CustomerID,
		PointsBalance:    account.PointsBalance,
		TotalEarned:      account.TotalEarned,
		TotalSpent:       account.TotalSpent,
		Tier:             info.Tier,
		MultiplierBps:    info.MultiplierBps,
		ReferralCode:     account.ReferralCode,
		ReferredBy:       account.ReferredBy,
		NextTier:         info.NextTier,
		PointsToNextTier: info.PointsToNextTier,
		ProgressPercent:  info.ProgressPercent,
	}, nil
}

// GetTransactionHistory returns a page of ledger entries, newest first,
// with the total count for pagination.
func (s *QueryService) GetTransactionHistory(customerID uuid.UUID, limit, offset int) ([]models.LoyaltyTransaction, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&models.LoyaltyTransaction{}).
		Where("customer_id = ?", customerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting loyalty transactions: %w", err)
	}

	// id breaks ties so pages stay stable when entries share a
	// creation timestamp.
	var transactions []models.LoyaltyTransaction
	if err := s.db.Where("customer_id = ?", customerID).
		Order("created_at DESC, id").Offset(offset).Limit(limit).
		Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("error finding loyalty transactions: %w", err)
	}

	return transactions, total, nil
}
