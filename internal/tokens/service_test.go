package tokens

import (
	"context"
	"testing"
	"time"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/testdb"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestCreate_NormalizesAndRejectsDuplicates(t *testing.T) {
	s := &Service{DB: testdb.New(t)}
	ctx := context.Background()

	tok, err := s.Create(ctx, CreateInput{Symbol: " usdt ", Name: "Tether", PriceFeedID: "tether"})
	require.NoError(t, err)
	assert.Equal(t, "USDT", tok.Symbol)

	_, err = s.Create(ctx, CreateInput{Symbol: "USDT", Name: "Tether", PriceFeedID: "tether"})
	assert.ErrorIs(t, err, ErrTokenExists)
	_, err = s.Create(ctx, CreateInput{Symbol: "US-DT", Name: "Bad", PriceFeedID: "x"})
	assert.ErrorIs(t, err, ErrInvalidSymbol)
	_, err = s.Create(ctx, CreateInput{Symbol: "ETH", Name: "Ether"})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestMissing(t *testing.T) {
	db := testdb.New(t)
	s := &Service{DB: db}
	ctx := context.Background()
	_, err := s.Create(ctx, CreateInput{Symbol: "BTC", Name: "Bitcoin", PriceFeedID: "bitcoin"})
	require.NoError(t, err)

	missing, err := Missing(ctx, db, "BTC", "XYZ")
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, missing)

	missing, err = Missing(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUpdate_MetadataOnly(t *testing.T) {
	s := &Service{DB: testdb.New(t)}
	ctx := context.Background()
	_, err := s.Create(ctx, CreateInput{Symbol: "BTC", Name: "Bitcoin", PriceFeedID: "bitcoin"})
	require.NoError(t, err)

	tok, err := s.Update(ctx, "btc", UpdateInput{Name: str("Bitcoin Core"), LogoURL: str("https://x/btc.png")})
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin Core", tok.Name)
	assert.Equal(t, "bitcoin", tok.PriceFeedID)
	require.NotNil(t, tok.LogoURL)

	_, err = s.Update(ctx, "BTC", UpdateInput{Name: str("  ")})
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = s.Update(ctx, "DOGE", UpdateInput{Name: str("Doge")})
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestDelete_RefusedWhileInUse(t *testing.T) {
	db := testdb.New(t)
	s := &Service{DB: db}
	ctx := context.Background()
	for _, sym := range []string{"BTC", "ETH"} {
		_, err := s.Create(ctx, CreateInput{Symbol: sym, Name: sym, PriceFeedID: sym})
		require.NoError(t, err)
	}
	holder := domain.Holder{Name: "Aida", AccessCode: "ABCD2345"}
	require.NoError(t, db.Create(&holder).Error)

	require.NoError(t, db.Create(&domain.Asset{HolderID: holder.ID, TokenSymbol: "BTC", Amount: decimal.RequireFromString("1")}).Error)
	assert.ErrorIs(t, s.Delete(ctx, "BTC"), ErrTokenInUse)

	require.NoError(t, db.Create(&domain.Transaction{
		HolderID: holder.ID, Type: domain.TxBuy, ToToken: str("ETH"),
		Amount: decimal.NewFromInt(1), NetAmount: decimal.NewFromInt(1),
		Status: domain.StatusPending, RequestedAt: time.Now(),
	}).Error)
	assert.ErrorIs(t, s.Delete(ctx, "ETH"), ErrTokenInUse)

	// a zero balance does not block removal and is cleaned up with the token
	require.NoError(t, db.Model(&domain.Asset{}).Where("token_symbol = ?", "BTC").Update("amount", decimal.Zero).Error)
	require.NoError(t, s.Delete(ctx, "btc"))
	var n int64
	db.Model(&domain.Asset{}).Where("holder_id = ?", holder.ID).Count(&n)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.Delete(ctx, "BTC"), ErrTokenNotFound)
}
