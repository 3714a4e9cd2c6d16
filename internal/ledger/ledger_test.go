package ledger

import (
	"context"
	"testing"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/keylock"
	"lethex-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupLedger(t *testing.T) (*Ledger, *gorm.DB) {
	db := testdb.New(t)
	return &Ledger{DB: db, Locks: keylock.New()}, db
}

func TestCredit_CreatesRowOnFirstCredit(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	_, err := l.GetBalance(ctx, holderID, "XYZ")
	assert.ErrorIs(t, err, ErrNoBalance)

	a, err := l.Credit(ctx, holderID, "XYZ", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "10.00000000", a.Amount.StringFixed(Scale))

	got, err := l.GetBalance(ctx, holderID, "XYZ")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("10")))
}

func TestCredit_AddsToExisting(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	_, err := l.Credit(ctx, holderID, "BTC", dec("0.5"))
	require.NoError(t, err)
	a, err := l.Credit(ctx, holderID, "BTC", dec("0.00091080"))
	require.NoError(t, err)
	assert.Equal(t, "0.50091080", a.Amount.StringFixed(Scale))
	assert.Equal(t, int64(1), a.Version)
}

func TestDebit_InsufficientLeavesBalance(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	_, err := l.Credit(ctx, holderID, "BTC", dec("5"))
	require.NoError(t, err)

	_, err = l.Debit(ctx, holderID, "BTC", dec("6"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := l.GetBalance(ctx, holderID, "BTC")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("5")))
}

func TestDebit_MissingRow(t *testing.T) {
	l, _ := setupLedger(t)
	_, err := l.Debit(context.Background(), uuid.New(), "BTC", dec("1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestDebit_ToExactlyZero(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	_, err := l.Credit(ctx, holderID, "USDT", dec("40"))
	require.NoError(t, err)
	a, err := l.Debit(ctx, holderID, "USDT", dec("40"))
	require.NoError(t, err)
	assert.True(t, a.Amount.IsZero())
}

func TestNegativeAmountsRejected(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	_, err := l.Credit(ctx, holderID, "BTC", dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Debit(ctx, holderID, "BTC", dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.SetBalance(ctx, holderID, "BTC", dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWrite_StaleVersionFails(t *testing.T) {
	l, db := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	a, err := l.Credit(ctx, holderID, "ETH", dec("3"))
	require.NoError(t, err)

	// Another writer bumps the version behind our back.
	require.NoError(t, db.Model(&domain.Asset{}).Where("id = ?", a.ID).Update("version", 7).Error)

	_, err = l.write(ctx, a, dec("1"))
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestWithTx_RollbackDiscardsCredit(t *testing.T) {
	l, db := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := l.WithTx(tx).Credit(ctx, holderID, "SOL", dec("2")); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = l.GetBalance(ctx, holderID, "SOL")
	assert.ErrorIs(t, err, ErrNoBalance)
}

func TestListByHolder_Ordered(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	holderID := uuid.New()

	for _, s := range []string{"USDT", "BTC", "ETH"} {
		_, err := l.SetBalance(ctx, holderID, s, dec("1"))
		require.NoError(t, err)
	}
	rows, err := l.ListByHolder(ctx, holderID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "BTC", rows[0].TokenSymbol)
	assert.Equal(t, "ETH", rows[1].TokenSymbol)
	assert.Equal(t, "USDT", rows[2].TokenSymbol)
}
