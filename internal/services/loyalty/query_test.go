package loyalty

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tresora/backend/internal/models"
)

func TestGetSummary(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	query := NewQueryService(db, ledger, settings)
	customerID := uuid.New()

	// First read creates the account so there is a code to share.
	summary, err := query.GetSummary(customerID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Zero(t, summary.PointsBalance)
	assert.Equal(t, models.TierBronze, summary.Tier)
	assert.NotEmpty(t, summary.ReferralCode)

	_, err = engine.EarnFromOrder(customerID, "order-1", 30_000)
	require.NoError(t, err) // 3000 points, silver

	summary, err = query.GetSummary(customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), summary.PointsBalance)
	assert.Equal(t, int64(3000), summary.TotalEarned)
	assert.Equal(t, models.TierSilver, summary.Tier)
	assert.Equal(t, models.TierGold, summary.NextTier)
	assert.Equal(t, int64(2000), summary.PointsToNextTier)
	assert.Equal(t, 50, summary.ProgressPercent)
}

func TestGetSummaryDisabled(t *testing.T) {
	_, ledger, settings, db := newTestEngine(t)
	query := NewQueryService(db, ledger, settings)

	frozenCustomer := uuid.New()
	_, err := ledger.GetOrCreateAccount(frozenCustomer, "")
	require.NoError(t, err)
	_, err = ledger.SetEnabled(frozenCustomer, false)
	require.NoError(t, err)

	summary, err := query.GetSummary(frozenCustomer)
	require.NoError(t, err)
	assert.Nil(t, summary)

	disableProgram(t, settings)
	summary, err = query.GetSummary(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestGetTransactionHistory(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	query := NewQueryService(db, ledger, settings)
	customerID := uuid.New()

	_, err := engine.AwardWelcomeBonus(customerID, "")
	require.NoError(t, err)
	for _, orderID := range []string{"order-1", "order-2", "order-3"} {
		_, err = engine.EarnFromOrder(customerID, orderID, 1000)
		require.NoError(t, err)
	}

	transactions, total, err := query.GetTransactionHistory(customerID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, transactions, 2)

	// Newest first.
	assert.Equal(t, models.TransactionEarned, transactions[0].Type)
	assert.False(t, transactions[0].CreatedAt.Before(transactions[1].CreatedAt))

	remainder, total, err := query.GetTransactionHistory(customerID, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, remainder, 2)

	// Other customers never leak into the page.
	otherID := uuid.New()
	_, err = ledger.GetOrCreateAccount(otherID, "")
	require.NoError(t, err)
	transactions, total, err = query.GetTransactionHistory(otherID, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, transactions)
}

func TestGetTransactionHistoryStablePagesOnEqualTimestamps(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	query := NewQueryService(db, ledger, settings)
	customerID := uuid.New()

	_, err := engine.AwardWelcomeBonus(customerID, "")
	require.NoError(t, err)
	for _, orderID := range []string{"order-1", "order-2"} {
		_, err = engine.EarnFromOrder(customerID, orderID, 1000)
		require.NoError(t, err)
	}

	// Collapse all creation timestamps; paging must still visit each
	// entry exactly once.
	require.NoError(t, db.Exec(
		"UPDATE loyalty_transactions SET created_at = ? WHERE customer_id = ?",
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), customerID).Error)

	seen := make(map[uuid.UUID]bool)
	for offset := 0; offset < 3; offset++ {
		page, total, err := query.GetTransactionHistory(customerID, 1, offset)
		require.NoError(t, err)
		require.Equal(t, int64(3), total)
		require.Len(t, page, 1)
		assert.False(t, seen[page[0].ID], "transaction %s appeared on two pages", page[0].ID)
		seen[page[0].ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestGetTransactionHistoryDefaults(t *testing.T) {
	_, ledger, settings, db := newTestEngine(t)
	query := NewQueryService(db, ledger, settings)

	// Out-of-range paging inputs fall back to the defaults.
	transactions, total, err := query.GetTransactionHistory(uuid.New(), -5, -5)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, transactions)
}
