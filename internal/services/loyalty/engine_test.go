package loyalty

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tresora/backend/internal/models"
)

func disableProgram(t *testing.T, settings *SettingsService) {
	t.Helper()

	row, err := settings.Get()
	require.NoError(t, err)
	row.Enabled = false
	_, err = settings.Update(*row)
	require.NoError(t, err)
}

func TestAwardWelcomeBonusIdempotent(t *testing.T) {
	engine, _, settings, db := newTestEngine(t)
	customerID := uuid.New()

	account, err := engine.AwardWelcomeBonus(customerID, "Amara")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.PointsBalance)

	// A redelivered signup event changes nothing.
	account, err = engine.AwardWelcomeBonus(customerID, "Amara")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.PointsBalance)
	assert.Equal(t, int64(1), countTransactions(t, db, customerID, models.TransactionWelcome))

	requireLedgerInvariants(t, db, settings, customerID)
}

func TestAwardWelcomeBonusDisabledProgram(t *testing.T) {
	engine, _, settings, db := newTestEngine(t)
	disableProgram(t, settings)
	customerID := uuid.New()

	account, err := engine.AwardWelcomeBonus(customerID, "Amara")
	require.NoError(t, err)
	assert.Zero(t, account.PointsBalance)
	assert.Zero(t, countTransactions(t, db, customerID, models.TransactionWelcome))
}

func TestEarnFromOrderBronze(t *testing.T) {
	engine, _, settings, db := newTestEngine(t)
	customerID := uuid.New()

	// 1000 minor units at 0.1 points per unit, 1.0x bronze multiplier.
	account, err := engine.EarnFromOrder(customerID, "order-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.PointsBalance)
	assert.Equal(t, models.TierBronze, account.Tier)

	requireLedgerInvariants(t, db, settings, customerID)
}

func TestEarnFromOrderIdempotent(t *testing.T) {
	engine, _, _, db := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.EarnFromOrder(customerID, "order-1", 1000)
	require.NoError(t, err)

	account, err := engine.EarnFromOrder(customerID, "order-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.PointsBalance)
	assert.Equal(t, int64(1), countTransactions(t, db, customerID, models.TransactionEarned))

	// A different order earns again.
	account, err = engine.EarnFromOrder(customerID, "order-2", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.PointsBalance)
}

func TestEarnFromOrderUsesTierMultiplier(t *testing.T) {
	engine, _, settings, db := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.AwardWelcomeBonus(customerID, "")
	require.NoError(t, err)
	// Lift the account into silver before the order.
	_, err = engine.AdjustPoints(customerID, 900, "seed")
	require.NoError(t, err)

	account, err := engine.EarnFromOrder(customerID, "order-1", 1000)
	require.NoError(t, err)
	// floor(floor(1000 * 0.1) * 1.25) = 125 on top of the seeded 1000.
	assert.Equal(t, int64(1125), account.PointsBalance)
	assert.Equal(t, models.TierSilver, account.Tier)

	requireLedgerInvariants(t, db, settings, customerID)
}

func TestEarnFromOrderValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.EarnFromOrder(uuid.New(), "order-1", 0)
	assert.ErrorIs(t, err, ErrInvalidOrderTotal)

	_, err = engine.EarnFromOrder(uuid.New(), "  ", 1000)
	assert.ErrorIs(t, err, ErrInvalidOrderID)
}

func TestEarnFromOrderDisabled(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)

	// Program off: the event is absorbed without a ledger write.
	disabledProgramCustomer := uuid.New()
	disableProgram(t, settings)
	account, err := engine.EarnFromOrder(disabledProgramCustomer, "order-1", 1000)
	require.NoError(t, err)
	assert.Zero(t, account.PointsBalance)
	assert.Zero(t, countTransactions(t, db, disabledProgramCustomer, models.TransactionEarned))

	// Re-enable and freeze a single account instead.
	row, err := settings.Get()
	require.NoError(t, err)
	row.Enabled = true
	_, err = settings.Update(*row)
	require.NoError(t, err)

	frozenCustomer := uuid.New()
	_, err = ledger.GetOrCreateAccount(frozenCustomer, "")
	require.NoError(t, err)
	_, err = ledger.SetEnabled(frozenCustomer, false)
	require.NoError(t, err)

	account, err = engine.EarnFromOrder(frozenCustomer, "order-1", 1000)
	require.NoError(t, err)
	assert.Zero(t, account.PointsBalance)
}

func TestSpendOnOrder(t *testing.T) {
	engine, _, settings, db := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.EarnFromOrder(customerID, "order-1", 5000)
	require.NoError(t, err) // balance 500

	result, err := engine.SpendOnOrder(customerID, "order-2", 300, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.Spent)
	assert.Equal(t, int64(300), result.DiscountValue)
	assert.Equal(t, int64(200), result.NewBalance)

	requireLedgerInvariants(t, db, settings, customerID)
}

func TestSpendOnOrderExceedsCap(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.EarnFromOrder(customerID, "order-1", 10_000)
	require.NoError(t, err) // balance 1000

	// Cap is floor(1000 * 0.3) = 300.
	_, err = engine.SpendOnOrder(customerID, "order-2", 301, 1000)
	assert.ErrorIs(t, err, ErrExceedsSpendCap)
}

func TestSpendOnOrderInsufficientPoints(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.EarnFromOrder(customerID, "order-1", 500)
	require.NoError(t, err) // balance 50

	_, err = engine.SpendOnOrder(customerID, "order-2", 100, 1000)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
}

func TestSpendOnOrderIdempotent(t *testing.T) {
	engine, _, _, db := newTestEngine(t)
	customerID := uuid.New()

	_, err := engine.EarnFromOrder(customerID, "order-1", 5000)
	require.NoError(t, err) // balance 500

	first, err := engine.SpendOnOrder(customerID, "order-2", 200, 1000)
	require.NoError(t, err)

	// A retried call for the same order reports the recorded outcome
	// without deducting again.
	second, err := engine.SpendOnOrder(customerID, "order-2", 250, 1000)
	require.NoError(t, err)
	assert.Equal(t, first.Spent, second.Spent)
	assert.Equal(t, first.NewBalance, second.NewBalance)
	assert.Equal(t, int64(1), countTransactions(t, db, customerID, models.TransactionSpent))
}

func TestSpendOnOrderDisabledProgram(t *testing.T) {
	engine, _, settings, _ := newTestEngine(t)
	disableProgram(t, settings)
	customerID := uuid.New()

	result, err := engine.SpendOnOrder(customerID, "order-1", 100, 1000)
	require.NoError(t, err)
	assert.Zero(t, result.Spent)
	assert.Zero(t, result.DiscountValue)
}

func TestAwardReferral(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	referrerID := uuid.New()
	refereeID := uuid.New()

	referrer, err := ledger.GetOrCreateAccount(referrerID, "Amara")
	require.NoError(t, err)

	referee, err := engine.AwardReferral(refereeID, referrer.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, int64(200), referee.PointsBalance)
	assert.Equal(t, referrer.ReferralCode, referee.ReferredBy)

	referrer, err = ledger.GetAccount(referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), referrer.PointsBalance)

	requireLedgerInvariants(t, db, settings, refereeID)
	requireLedgerInvariants(t, db, settings, referrerID)
}

func TestAwardReferralNormalizesCode(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	referrer, err := ledger.GetOrCreateAccount(uuid.New(), "Amara")
	require.NoError(t, err)

	referee, err := engine.AwardReferral(uuid.New(), "  "+referrer.ReferralCode+" ")
	require.NoError(t, err)
	assert.Equal(t, referrer.ReferralCode, referee.ReferredBy)
}

func TestAwardReferralSelf(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	customerID := uuid.New()
	account, err := ledger.GetOrCreateAccount(customerID, "Amara")
	require.NoError(t, err)

	_, err = engine.AwardReferral(customerID, account.ReferralCode)
	assert.ErrorIs(t, err, ErrSelfReferral)
}

func TestAwardReferralOnlyOnce(t *testing.T) {
	engine, ledger, _, db := newTestEngine(t)
	refereeID := uuid.New()

	first, err := ledger.GetOrCreateAccount(uuid.New(), "Amara")
	require.NoError(t, err)
	second, err := ledger.GetOrCreateAccount(uuid.New(), "Bisi")
	require.NoError(t, err)

	_, err = engine.AwardReferral(refereeID, first.ReferralCode)
	require.NoError(t, err)

	// One referral per customer, even with a different code.
	_, err = engine.AwardReferral(refereeID, second.ReferralCode)
	assert.ErrorIs(t, err, ErrReferralAlreadyClaimed)
	assert.Equal(t, int64(1), countTransactions(t, db, refereeID, models.TransactionReferral))
}

func TestAwardReferralUnknownCode(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.AwardReferral(uuid.New(), "NOSUCH-CODE")
	assert.ErrorIs(t, err, ErrReferralCodeNotFound)

	_, err = engine.AwardReferral(uuid.New(), "   ")
	assert.ErrorIs(t, err, ErrInvalidReferralCode)
}

func TestAwardReferralDisabledProgram(t *testing.T) {
	engine, ledger, settings, _ := newTestEngine(t)
	referrer, err := ledger.GetOrCreateAccount(uuid.New(), "Amara")
	require.NoError(t, err)

	disableProgram(t, settings)
	_, err = engine.AwardReferral(uuid.New(), referrer.ReferralCode)
	assert.ErrorIs(t, err, ErrProgramDisabled)
}

func TestAwardReferralDisabledReferrer(t *testing.T) {
	engine, ledger, _, db := newTestEngine(t)
	referrer, err := ledger.GetOrCreateAccount(uuid.New(), "Amara")
	require.NoError(t, err)
	_, err = ledger.SetEnabled(referrer.CustomerID, false)
	require.NoError(t, err)

	// A disabled account's code is not redeemable.
	refereeID := uuid.New()
	_, err = engine.AwardReferral(refereeID, referrer.ReferralCode)
	assert.ErrorIs(t, err, ErrReferralCodeNotFound)
	assert.Zero(t, countTransactions(t, db, refereeID, models.TransactionReferral))
	assert.Zero(t, countTransactions(t, db, referrer.CustomerID, models.TransactionReferral))
}

func TestCreditReferrerSkipsDisabledAccount(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	referrerID := uuid.New()
	_, err := ledger.GetOrCreateAccount(referrerID, "")
	require.NoError(t, err)
	_, err = ledger.SetEnabled(referrerID, false)
	require.NoError(t, err)

	snap, err := settings.Snapshot()
	require.NoError(t, err)

	// An account disabled between the referee write and this one earns
	// nothing, but the call still succeeds so retries and the sweep
	// settle.
	require.NoError(t, engine.CreditReferrer(referrerID, uuid.New(), snap))
	assert.Zero(t, countTransactions(t, db, referrerID, models.TransactionReferral))
}

func TestCreditReferrerIdempotent(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	referrerID := uuid.New()
	refereeID := uuid.New()
	_, err := ledger.GetOrCreateAccount(referrerID, "")
	require.NoError(t, err)

	snap, err := settings.Snapshot()
	require.NoError(t, err)

	require.NoError(t, engine.CreditReferrer(referrerID, refereeID, snap))
	require.NoError(t, engine.CreditReferrer(referrerID, refereeID, snap))

	assert.Equal(t, int64(1), countTransactions(t, db, referrerID, models.TransactionReferral))
}

func TestAdjustPoints(t *testing.T) {
	engine, ledger, settings, db := newTestEngine(t)
	customerID := uuid.New()
	_, err := ledger.GetOrCreateAccount(customerID, "")
	require.NoError(t, err)

	_, err = engine.AdjustPoints(customerID, 0, "no-op")
	assert.ErrorIs(t, err, ErrInvalidAdjustment)

	// Unknown customers are rejected rather than lazily created.
	_, err = engine.AdjustPoints(uuid.New(), 100, "support credit")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	account, err := engine.AdjustPoints(customerID, 5000, "goodwill credit")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), account.PointsBalance)
	assert.Equal(t, models.TierGold, account.Tier)

	account, err = engine.AdjustPoints(customerID, -4500, "correction")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.PointsBalance)
	// Debits never demote.
	assert.Equal(t, models.TierGold, account.Tier)

	_, err = engine.AdjustPoints(customerID, -501, "overdraw")
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	requireLedgerInvariants(t, db, settings, customerID)
}
