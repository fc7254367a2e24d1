package loyalty

import (
	"github.com/tresora/backend/internal/models"
)

// TierInfo describes the tier derived from cumulative earned points.
type TierInfo struct {
	Tier          models.Tier `json:"tier"`
	MultiplierBps int64       `json:"multiplier_bps"`
	// NextTier is empty for gold.
	NextTier         models.Tier `json:"next_tier,omitempty"`
	PointsToNextTier int64       `json:"points_to_next_tier"`
	ProgressPercent  int         `json:"progress_percent"`
}

// TierFor maps cumulative earned points onto a tier. Pure; the ledger
// calls it after every totalEarned change and persists the result, so
// account.Tier always agrees with this function.
func TierFor(totalEarned int64, snap SettingsSnapshot) TierInfo {
	switch {
	case totalEarned >= snap.GoldThreshold:
		return TierInfo{
			Tier:            models.TierGold,
			MultiplierBps:   snap.GoldMultiplierBps,
			ProgressPercent: 100,
		}
	case totalEarned >= snap.SilverThreshold:
		return TierInfo{
			Tier:             models.TierSilver,
			MultiplierBps:    snap.SilverMultiplierBps,
			NextTier:         models.TierGold,
			PointsToNextTier: snap.GoldThreshold - totalEarned,
			ProgressPercent:  progressPercent(totalEarned, snap.SilverThreshold, snap.GoldThreshold),
		}
	default:
		return TierInfo{
			Tier:             models.TierBronze,
			MultiplierBps:    snap.BronzeMultiplierBps,
			NextTier:         models.TierSilver,
			PointsToNextTier: snap.SilverThreshold - totalEarned,
			ProgressPercent:  progressPercent(totalEarned, 0, snap.SilverThreshold),
		}
	}
}

// MultiplierForTier returns the earning multiplier for an already
// persisted tier. Order earning uses the account's tier as it was
// before the order is applied.
func MultiplierForTier(tier models.Tier, snap SettingsSnapshot) int64 {
	switch tier {
	case models.TierGold:
		return snap.GoldMultiplierBps
	case models.TierSilver:
		return snap.SilverMultiplierBps
	default:
		return snap.BronzeMultiplierBps
	}
}

// progressPercent is round(100 * (earned-min) / (next-min)) clamped to
// [0, 100].
func progressPercent(totalEarned, tierMin, nextMin int64) int {
	span := nextMin - tierMin
	if span <= 0 {
		return 100
	}
	done := totalEarned - tierMin
	if done <= 0 {
		return 0
	}
	percent := (100*done + span/2) / span
	if percent > 100 {
		return 100
	}
	return int(percent)
}
