package loyalty

import (
	"github.com/tresora/backend/internal/models"
)

// CheckoutQuote is the pre-finalization preview the checkout service
// shows the customer. Purely informational; SpendOnOrder re-enforces
// everything at order completion.
type CheckoutQuote struct {
	PointsToEarn   int64 `json:"points_to_earn"`
	MaxSpendable   int64 `json:"max_spendable"`
	ActualDiscount int64 `json:"actual_discount"`
	FinalTotal     int64 `json:"final_total"`
}

// QuoteCheckout computes earn/spend numbers for an order without
// touching any state. All amounts are currency minor units; every
// division truncates, matching the ledger's arithmetic exactly.
func QuoteCheckout(orderTotal, pointsRequested, currentBalance int64, tier models.Tier, snap SettingsSnapshot) CheckoutQuote {
	if orderTotal <= 0 || !snap.Enabled {
		return CheckoutQuote{FinalTotal: orderTotal}
	}

	base := orderTotal * snap.EarnRateBps / 10000
	pointsToEarn := base * MultiplierForTier(tier, snap) / 10000

	cap := orderTotal * snap.SpendCapBps / 10000
	maxSpendable := cap
	if currentBalance < maxSpendable {
		maxSpendable = currentBalance
	}
	if maxSpendable < 0 {
		maxSpendable = 0
	}

	toSpend := pointsRequested
	if toSpend > maxSpendable {
		toSpend = maxSpendable
	}
	if toSpend < 0 {
		toSpend = 0
	}

	discount := toSpend * snap.RedeemRateBps / 10000
	finalTotal := orderTotal - discount
	if finalTotal < 0 {
		finalTotal = 0
	}

	return CheckoutQuote{
		PointsToEarn:   pointsToEarn,
		MaxSpendable:   maxSpendable,
		ActualDiscount: discount,
		FinalTotal:     finalTotal,
	}
}
