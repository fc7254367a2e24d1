package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tier represents a loyalty tier bracket
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// TransactionType represents the kind of a loyalty transaction
type TransactionType string

const (
	TransactionEarned     TransactionType = "earned"
	TransactionSpent      TransactionType = "spent"
	TransactionWelcome    TransactionType = "welcome"
	TransactionReferral   TransactionType = "referral"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionExpired    TransactionType = "expired"
)

// LoyaltyAccount represents a customer's points account.
// Accounts are created lazily on first interaction and never deleted.
type LoyaltyAccount struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CustomerID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"customer_id"`
	PointsBalance int64     `gorm:"not null;default:0" json:"points_balance"`
	TotalEarned   int64     `gorm:"not null;default:0" json:"total_earned"`
	TotalSpent    int64     `gorm:"not null;default:0" json:"total_spent"`
	Tier          Tier      `gorm:"type:varchar(20);not null;default:'bronze'" json:"tier"`
	ReferralCode  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"referral_code"`
	// ReferredBy holds the referral code this customer redeemed; write-once.
	ReferredBy string         `gorm:"type:varchar(50)" json:"referred_by,omitempty"`
	IsEnabled  bool           `gorm:"not null;default:true" json:"is_enabled"`
	CreatedAt  time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the database does not
func (a *LoyaltyAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// LoyaltyTransaction is one append-only ledger entry. Rows are never
// updated or deleted; replaying PointsAmount in creation order must
// reproduce the account's PointsBalance.
type LoyaltyTransaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;index;not null;uniqueIndex:idx_loyalty_tx_idempotency" json:"customer_id"`
	Type       TransactionType `gorm:"type:varchar(20);not null;uniqueIndex:idx_loyalty_tx_idempotency" json:"type"`
	// PointsAmount is signed: positive for credits, negative for debits.
	PointsAmount int64 `gorm:"not null" json:"points_amount"`
	// RelatedOrderID is the idempotency key for order-driven earn/spend.
	RelatedOrderID *string `gorm:"type:varchar(100);uniqueIndex:idx_loyalty_tx_idempotency" json:"related_order_id,omitempty"`
	// RelatedCustomerID pairs the two sides of a referral bonus.
	RelatedCustomerID *uuid.UUID `gorm:"type:uuid" json:"related_customer_id,omitempty"`
	Description       string     `gorm:"type:text" json:"description"`
	BalanceAfter      int64      `gorm:"not null" json:"balance_after"`
	MetaData          JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate assigns a UUID when the database does not
func (t *LoyaltyTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
