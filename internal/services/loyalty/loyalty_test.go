package loyalty

import (
	"fmt"
	"sort"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tresora/backend/internal/database"
	"github.com/tresora/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an isolated in-memory database with the full
// schema, including the partial unique indexes from migrations.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return db
}

func newTestEngine(t *testing.T) (*Engine, *LedgerService, *SettingsService, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	settings := NewSettingsService(db)
	ledger := NewLedgerService(db)
	engine := NewEngine(ledger, settings)
	return engine, ledger, settings, db
}

// requireLedgerInvariants checks that the balance equals the signed sum
// of all transactions and that every balance_after snapshot matches the
// running sum, and that the persisted tier agrees with the calculator.
func requireLedgerInvariants(t *testing.T, db *gorm.DB, settings *SettingsService, customerID uuid.UUID) {
	t.Helper()

	var account models.LoyaltyAccount
	require.NoError(t, db.Where("customer_id = ?", customerID).First(&account).Error)

	var transactions []models.LoyaltyTransaction
	require.NoError(t, db.Where("customer_id = ?", customerID).Find(&transactions).Error)
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
	})

	var running int64
	for _, tx := range transactions {
		running += tx.PointsAmount
		require.Equal(t, running, tx.BalanceAfter,
			"balance_after must equal the running sum for transaction %s", tx.ID)
	}
	require.Equal(t, running, account.PointsBalance,
		"points balance must equal the signed sum of all transactions")

	snap, err := settings.Snapshot()
	require.NoError(t, err)
	require.Equal(t, TierFor(account.TotalEarned, snap).Tier, account.Tier,
		"persisted tier must match the tier derived from total earned")
}

func countTransactions(t *testing.T, db *gorm.DB, customerID uuid.UUID, txType models.TransactionType) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.LoyaltyTransaction{}).
		Where("customer_id = ? AND type = ?", customerID, txType).
		Count(&count).Error)
	return count
}
