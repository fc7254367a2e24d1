package models

import (
	"time"
)

// LoyaltySettings is the single operator-editable configuration row.
// Rates and fractions are stored in basis points (10000 = 1.0) so all
// point math stays in integers.
type LoyaltySettings struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	Enabled bool `gorm:"not null;default:true" json:"enabled"`

	// EarnRateBps is points awarded per currency minor unit, in basis
	// points. 1000 means 0.1 points per unit.
	EarnRateBps int64 `gorm:"not null;default:1000" json:"earn_rate_bps"`
	// RedeemRateBps is currency minor units refunded per point, in basis
	// points. 10000 means each point is worth one minor unit.
	RedeemRateBps int64 `gorm:"not null;default:10000" json:"redeem_rate_bps"`
	// SpendCapBps caps the fraction of an order payable with points.
	SpendCapBps int64 `gorm:"not null;default:3000" json:"spend_cap_bps"`

	WelcomeBonusPoints  int64 `gorm:"not null;default:100" json:"welcome_bonus_points"`
	ReferralBonusPoints int64 `gorm:"not null;default:200" json:"referral_bonus_points"`

	SilverThreshold int64 `gorm:"not null;default:1000" json:"silver_threshold"`
	GoldThreshold   int64 `gorm:"not null;default:5000" json:"gold_threshold"`

	BronzeMultiplierBps int64 `gorm:"not null;default:10000" json:"bronze_multiplier_bps"`
	SilverMultiplierBps int64 `gorm:"not null;default:12500" json:"silver_multiplier_bps"`
	GoldMultiplierBps   int64 `gorm:"not null;default:15000" json:"gold_multiplier_bps"`

	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}
