package jobs

import (
	"fmt"
	"log"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/tresora/backend/internal/services/loyalty"
	"gorm.io/gorm"
)

// ReferralSweepJob completes half-finished referral redemptions. The
// referee and referrer bonuses are two separate atomic writes; if the
// process dies between them the referrer side is missing. The sweep
// finds those pairs and credits the referrer, idempotent against the
// referral pair index.
type ReferralSweepJob struct {
	db       *gorm.DB
	engine   *loyalty.Engine
	settings *loyalty.SettingsService
}

// NewReferralSweepJob creates a new referral sweep job
func NewReferralSweepJob(db *gorm.DB, engine *loyalty.Engine, settings *loyalty.SettingsService) *ReferralSweepJob {
	return &ReferralSweepJob{db: db, engine: engine, settings: settings}
}

// Schedule registers the hourly sweep on the worker scheduler
func (j *ReferralSweepJob) Schedule(scheduler *gocron.Scheduler) error {
	_, err := scheduler.Every(1).Hour().Do(func() {
		if err := j.Run(); err != nil {
			log.Printf("Referral sweep failed: %v", err)
		}
	})
	return err
}

type danglingReferral struct {
	RefereeID  uuid.UUID `gorm:"column:referee_id"`
	ReferrerID uuid.UUID `gorm:"column:referrer_id"`
}

// Run finds referee-only-awarded redemptions and credits the referrer.
func (j *ReferralSweepJob) Run() error {
	snap, err := j.settings.Snapshot()
	if err != nil {
		return err
	}

	var dangling []danglingReferral
	err = j.db.Raw(`
		SELECT referee.customer_id AS referee_id,
		       referrer.customer_id AS referrer_id
		FROM loyalty_accounts referee
		JOIN loyalty_accounts referrer
		  ON referrer.referral_code = referee.referred_by
		WHERE referee.referred_by <> ''
		  AND referrer.is_enabled
		  AND NOT EXISTS (
			SELECT 1 FROM loyalty_transactions t
			WHERE t.customer_id = referrer.customer_id
			  AND t.type = 'referral'
			  AND t.related_customer_id = referee.customer_id
		  )`).Scan(&dangling).Error
	if err != nil {
		return fmt.Errorf("error finding dangling referrals: %w", err)
	}

	for _, pair := range dangling {
		if err := j.engine.CreditReferrer(pair.ReferrerID, pair.RefereeID, snap); err != nil {
			log.Printf("Referral sweep: failed to credit referrer %s for referee %s: %v",
				pair.ReferrerID, pair.RefereeID, err)
			continue
		}
		log.Printf("Referral sweep: completed referrer bonus for %s (referee %s)",
			pair.ReferrerID, pair.RefereeID)
	}

	return nil
}
