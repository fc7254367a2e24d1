package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// RunMigrations applies the versioned migrations. These hold the
// uniqueness guarantees the awarding engine's idempotency depends on:
// an application-level existence check alone would race under
// concurrent event delivery.
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			// One welcome bonus per customer, ever.
			ID: "000001_unique_welcome_bonus",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS uniq_loyalty_welcome
					 ON loyalty_transactions (customer_id)
					 WHERE type = 'welcome'`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS uniq_loyalty_welcome`).Error
			},
		},
		{
			// One referral bonus per (account, counterpart) pair; covers
			// both the referee and the referrer side of a redemption.
			ID: "000002_unique_referral_pair",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS uniq_loyalty_referral_pair
					 ON loyalty_transactions (customer_id, related_customer_id)
					 WHERE type = 'referral'`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS uniq_loyalty_referral_pair`).Error
			},
		},
	})

	return m.Migrate()
}
