package loyalty

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tresora/backend/internal/models"
	"gorm.io/gorm"
)

// settingsRowID is the primary key of the singleton settings row.
const settingsRowID = 1

// SettingsSnapshot is an immutable copy of the program configuration.
// Every engine operation captures one snapshot up front and uses it for
// the whole call, so a concurrent operator edit never changes the rules
// mid-operation.
type SettingsSnapshot struct {
	Enabled bool

	EarnRateBps   int64
	RedeemRateBps int64
	SpendCapBps   int64

	WelcomeBonusPoints  int64
	ReferralBonusPoints int64

	SilverThreshold int64
	GoldThreshold   int64

	BronzeMultiplierBps int64
	SilverMultiplierBps int64
	GoldMultiplierBps   int64
}

// DefaultSettings returns the configuration used before an operator has
// saved anything. The program is usable out of the box.
func DefaultSettings() models.LoyaltySettings {
	return models.LoyaltySettings{
		ID:                  settingsRowID,
		Enabled:             true,
		EarnRateBps:         1000,
		RedeemRateBps:       10000,
		SpendCapBps:         3000,
		WelcomeBonusPoints:  100,
		ReferralBonusPoints: 200,
		SilverThreshold:     1000,
		GoldThreshold:       5000,
		BronzeMultiplierBps: 10000,
		SilverMultiplierBps: 12500,
		GoldMultiplierBps:   15000,
	}
}

// SettingsService reads and writes the global loyalty configuration.
// Reads go through an in-memory snapshot; only the operator write path
// touches the row.
type SettingsService struct {
	db    *gorm.DB
	cache atomic.Value // SettingsSnapshot
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Snapshot returns the current configuration as an immutable value.
// The first call loads from the database; later calls are wait-free
// until Update refreshes the cache.
func (s *SettingsService) Snapshot() (SettingsSnapshot, error) {
	if cached := s.cache.Load(); cached != nil {
		return cached.(SettingsSnapshot), nil
	}
	return s.Reload()
}

// Reload re-reads the settings row and refreshes the cached snapshot.
func (s *SettingsService) Reload() (SettingsSnapshot, error) {
	var row models.LoyaltySettings
	err := s.db.First(&row, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = DefaultSettings()
	} else if err != nil {
		return SettingsSnapshot{}, fmt.Errorf("error loading loyalty settings: %w", err)
	}

	snap := snapshotOf(row)
	s.cache.Store(snap)
	return snap, nil
}

// Get returns the stored settings row, falling back to defaults when no
// operator has configured the program yet.
func (s *SettingsService) Get() (*models.LoyaltySettings, error) {
	var row models.LoyaltySettings
	err := s.db.First(&row, "id = ?", settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = DefaultSettings()
		return &row, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading loyalty settings: %w", err)
	}
	return &row, nil
}

// Update replaces the settings row wholesale and refreshes the cached
// snapshot. Restricted to the operator surface; engine code never calls
// this.
func (s *SettingsService) Update(settings models.LoyaltySettings) (*models.LoyaltySettings, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	settings.ID = settingsRowID
	if err := s.db.Save(&settings).Error; err != nil {
		return nil, fmt.Errorf("error saving loyalty settings: %w", err)
	}

	s.cache.Store(snapshotOf(settings))
	return &settings, nil
}

func validateSettings(settings models.LoyaltySettings) error {
	if settings.EarnRateBps < 0 || settings.RedeemRateBps < 0 ||
		settings.WelcomeBonusPoints < 0 || settings.ReferralBonusPoints < 0 {
		return fmt.Errorf("loyalty settings: rates and bonuses must be non-negative")
	}
	if settings.SpendCapBps < 0 || settings.SpendCapBps > 10000 {
		return fmt.Errorf("loyalty settings: spend cap must be between 0 and 10000 basis points")
	}
	if settings.SilverThreshold <= 0 || settings.GoldThreshold <= settings.SilverThreshold {
		return fmt.Errorf("loyalty settings: tier thresholds must be ascending and positive")
	}
	if settings.BronzeMultiplierBps <= 0 || settings.SilverMultiplierBps <= 0 || settings.GoldMultiplierBps <= 0 {
		return fmt.Errorf("loyalty settings: tier multipliers must be positive")
	}
	return nil
}

func snapshotOf(row models.LoyaltySettings) SettingsSnapshot {
	return SettingsSnapshot{
		Enabled:             row.Enabled,
		EarnRateBps:         row.EarnRateBps,
		RedeemRateBps:       row.RedeemRateBps,
		SpendCapBps:         row.SpendCapBps,
		WelcomeBonusPoints:  row.WelcomeBonusPoints,
		ReferralBonusPoints: row.ReferralBonusPoints,
		SilverThreshold:     row.SilverThreshold,
		GoldThreshold:       row.GoldThreshold,
		BronzeMultiplierBps: row.BronzeMultiplierBps,
		SilverMultiplierBps: row.SilverMultiplierBps,
		GoldMultiplierBps:   row.GoldMultiplierBps,
	}
}
