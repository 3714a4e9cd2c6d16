package transactions

import (
	"context"
	"testing"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seed(t *testing.T) (*Service, *gorm.DB, domain.Holder) {
	t.Helper()
	db := testdb.New(t)
	for _, s := range []string{"USDT", "BTC"} {
		require.NoError(t, db.Create(&domain.Token{Symbol: s, Name: s, PriceFeedID: s}).Error)
	}
	h := domain.Holder{Name: "Aida", AccessCode: "QWER2345"}
	require.NoError(t, db.Create(&h).Error)
	return &Service{DB: db}, db, h
}

func str(s string) *string { return &s }

func TestCreate_SwapComputesFee(t *testing.T) {
	s, _, h := seed(t)
	tx, err := s.Create(context.Background(), h.ID, domain.TxSwap, CreateInput{
		FromToken: str("usdt"), ToToken: str(" btc "), Amount: decimal.RequireFromString("40"), Notes: str("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.Equal(t, "USDT", *tx.FromToken)
	assert.Equal(t, "BTC", *tx.ToToken)
	assert.Equal(t, "0.40000000", tx.Fee.StringFixed(8))
	assert.Equal(t, "39.60000000", tx.NetAmount.StringFixed(8))
	assert.Nil(t, tx.Notes)
	assert.False(t, tx.RequestedAt.IsZero())

	events, err := s.Events(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreated, events[0].EventType)
}

func TestCreate_CustomFeeRate(t *testing.T) {
	s, _, h := seed(t)
	s.FeeRate = decimal.RequireFromString("0.025")
	tx, err := s.Create(context.Background(), h.ID, domain.TxSwap, CreateInput{
		FromToken: str("USDT"), ToToken: str("BTC"), Amount: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.25000000", tx.Fee.StringFixed(8))
}

func TestCreate_BuySellHaveNoFee(t *testing.T) {
	s, _, h := seed(t)
	buy, err := s.Create(context.Background(), h.ID, domain.TxBuy, CreateInput{
		FromToken: str("USDT"), ToToken: str("BTC"), Amount: decimal.RequireFromString("2"),
	})
	require.NoError(t, err)
	assert.True(t, buy.Fee.IsZero())
	assert.True(t, buy.NetAmount.Equal(buy.Amount))
	assert.Nil(t, buy.FromToken)

	sell, err := s.Create(context.Background(), h.ID, domain.TxSell, CreateInput{
		FromToken: str("BTC"), ToToken: str("USDT"), Amount: decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	assert.Nil(t, sell.ToToken)
}

func TestCreate_InvalidRequests(t *testing.T) {
	s, _, h := seed(t)
	cases := []struct {
		name string
		typ  domain.TransactionType
		in   CreateInput
	}{
		{"zero amount", domain.TxBuy, CreateInput{ToToken: str("BTC"), Amount: decimal.Zero}},
		{"negative amount", domain.TxBuy, CreateInput{ToToken: str("BTC"), Amount: decimal.RequireFromString("-1")}},
		{"too many decimals", domain.TxBuy, CreateInput{ToToken: str("BTC"), Amount: decimal.RequireFromString("0.000000001")}},
		{"same token swap", domain.TxSwap, CreateInput{FromToken: str("BTC"), ToToken: str("btc"), Amount: decimal.NewFromInt(1)}},
		{"swap missing to", domain.TxSwap, CreateInput{FromToken: str("BTC"), Amount: decimal.NewFromInt(1)}},
		{"buy missing to", domain.TxBuy, CreateInput{FromToken: str("BTC"), Amount: decimal.NewFromInt(1)}},
		{"sell missing from", domain.TxSell, CreateInput{ToToken: str("BTC"), Amount: decimal.NewFromInt(1)}},
		{"unknown type", domain.TransactionType("gift"), CreateInput{ToToken: str("BTC"), Amount: decimal.NewFromInt(1)}},
		{"not whitelisted", domain.TxBuy, CreateInput{ToToken: str("DOGE"), Amount: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), h.ID, tc.typ, tc.in)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreate_UnknownHolder(t *testing.T) {
	s, _, _ := seed(t)
	_, err := s.Create(context.Background(), uuid.New(), domain.TxBuy, CreateInput{ToToken: str("BTC"), Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}

func TestListings(t *testing.T) {
	s, db, h := seed(t)
	ctx := context.Background()
	a, err := s.Create(ctx, h.ID, domain.TxBuy, CreateInput{ToToken: str("BTC"), Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	b, err := s.Create(ctx, h.ID, domain.TxBuy, CreateInput{ToToken: str("USDT"), Amount: decimal.NewFromInt(2)})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Transaction{}).Where("id = ?", b.ID).Update("status", domain.StatusRejected).Error)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	history, err := s.ListHistory(ctx, &h.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, b.ID, history[0].ID)

	other := uuid.New()
	history, err = s.ListHistory(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, history)

	mine, err := s.ListByHolder(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
