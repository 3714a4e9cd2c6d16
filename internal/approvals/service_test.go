package approvals

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lethex-backend/internal/commissions"
	"lethex-backend/internal/domain"
	"lethex-backend/internal/ledger"
	"lethex-backend/internal/pkg/keylock"
	"lethex-backend/internal/pkg/testdb"
	"lethex-backend/internal/transactions"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	engine *Engine
	txs    *transactions.Service
	holder domain.Holder
	admin  domain.Admin
	views  *countingViews
}

type countingViews struct {
	mu sync.Mutex
	n  int
}

func (v *countingViews) Invalidate() {
	v.mu.Lock()
	v.n++
	v.mu.Unlock()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sym(s string) *string {
	return &s
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	for _, s := range []string{"USDT", "BTC", "XYZ"} {
		require.NoError(t, db.Create(&domain.Token{Symbol: s, Name: s, PriceFeedID: s}).Error)
	}
	f := &fixture{db: db, views: &countingViews{}}
	f.holder = domain.Holder{Name: "Aibek", AccessCode: "ABCD2345"}
	require.NoError(t, db.Create(&f.holder).Error)
	f.admin = domain.Admin{Name: "Root", Email: "root@lethex.test", PasswordHash: "x"}
	require.NoError(t, db.Create(&f.admin).Error)

	led := &ledger.Ledger{DB: db, Locks: keylock.New()}
	f.engine = &Engine{DB: db, Ledger: led, Commissions: &commissions.Service{DB: db}, Views: f.views}
	f.txs = &transactions.Service{DB: db}
	return f
}

func (f *fixture) fund(t *testing.T, symbol, amount string) {
	t.Helper()
	_, err := f.engine.Ledger.Credit(context.Background(), f.holder.ID, symbol, dec(amount))
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, symbol string) string {
	t.Helper()
	a, err := f.engine.Ledger.GetBalance(context.Background(), f.holder.ID, symbol)
	if errors.Is(err, ledger.ErrNoBalance) {
		return "absent"
	}
	require.NoError(t, err)
	return a.Amount.StringFixed(ledger.Scale)
}

func (f *fixture) request(t *testing.T, typ domain.TransactionType, from, to *string, amount string) *domain.Transaction {
	t.Helper()
	tx, err := f.txs.Create(context.Background(), f.holder.ID, typ, transactions.CreateInput{
		FromToken: from, ToToken: to, Amount: dec(amount),
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.TransactionStatus {
	t.Helper()
	tx, err := f.txs.Get(context.Background(), id)
	require.NoError(t, err)
	return tx.Status
}

func TestApprove_SwapSettlesAndRecordsCommission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "USDT", "100")

	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")
	assert.Equal(t, "0.40000000", req.Fee.StringFixed(8))
	assert.Equal(t, "39.60000000", req.NetAmount.StringFixed(8))

	price := dec("0.000023")
	got, err := f.engine.Approve(ctx, req.ID, f.admin.ID, &price)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	require.True(t, got.ReceivedAmount.Valid)
	assert.Equal(t, "0.00091080", got.ReceivedAmount.Decimal.StringFixed(8))
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, f.admin.ID, *got.ApprovedBy)

	assert.Equal(t, "60.00000000", f.balance(t, "USDT"))
	assert.Equal(t, "0.00091080", f.balance(t, "BTC"))

	stored, err := f.txs.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.True(t, stored.ExecutionPrice.Decimal.Equal(price))
	assert.Equal(t, "0.00091080", stored.ReceivedAmount.Decimal.StringFixed(8))
	require.NotNil(t, stored.ApprovedAt)

	rows, err := f.engine.Commissions.List(ctx, &f.holder.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "USDT", rows[0].FeeToken)
	assert.Equal(t, "0.40000000", rows[0].FeeAmount.StringFixed(8))
	assert.Equal(t, req.ID, rows[0].TransactionID)

	events, err := f.txs.Events(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventCreated, events[0].EventType)
	assert.Equal(t, domain.EventApproved, events[1].EventType)
	assert.Equal(t, 1, f.views.n)
}

func TestApprove_SellInsufficientBalance(t *testing.T) {
	f := setup(t)
	f.fund(t, "BTC", "5")
	req := f.request(t, domain.TxSell, sym("BTC"), nil, "6")

	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "5.00000000", f.balance(t, "BTC"))
	assert.Equal(t, domain.StatusPending, f.status(t, req.ID))
	assert.Equal(t, 0, f.views.n)
}

func TestApprove_SellWithoutBalanceRow(t *testing.T) {
	f := setup(t)
	req := f.request(t, domain.TxSell, sym("BTC"), nil, "1")

	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "absent", f.balance(t, "BTC"))
}

func TestApprove_SellToZero(t *testing.T) {
	f := setup(t)
	f.fund(t, "BTC", "5")
	req := f.request(t, domain.TxSell, sym("BTC"), nil, "5")

	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.00000000", f.balance(t, "BTC"))
}

func TestApprove_ConcurrentAttemptsSettleOnce(t *testing.T) {
	f := setup(t)
	f.fund(t, "USDT", "100")
	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")
	price := dec("0.000023")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Approve(context.Background(), req.ID, f.admin.ID, &price)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrConcurrentModification), err.Error())
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, "60.00000000", f.balance(t, "USDT"))
	assert.Equal(t, "0.00091080", f.balance(t, "BTC"))

	rows, err := f.engine.Commissions.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestApprove_ConcurrentSellsNeverOverdraw(t *testing.T) {
	f := setup(t)
	f.fund(t, "BTC", "100")

	const n = 8
	reqs := make([]*domain.Transaction, n)
	for i := range reqs {
		reqs[i] = f.request(t, domain.TxSell, sym("BTC"), nil, "20")
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Approve(context.Background(), reqs[i].ID, f.admin.ID, nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for i, err := range errs {
		if err == nil {
			ok++
			assert.Equal(t, domain.StatusApproved, f.status(t, reqs[i].ID))
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, domain.StatusPending, f.status(t, reqs[i].ID))
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, "0.00000000", f.balance(t, "BTC"))
}

func TestApprove_BuyCreatesBalance(t *testing.T) {
	f := setup(t)
	req := f.request(t, domain.TxBuy, nil, sym("XYZ"), "10")

	got, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.ReceivedAmount.Valid)
	assert.Equal(t, "10.00000000", f.balance(t, "XYZ"))

	rows, err := f.engine.Commissions.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestApprove_TokenNotWhitelisted(t *testing.T) {
	f := setup(t)
	f.fund(t, "XYZ", "50")
	req := f.request(t, domain.TxSwap, sym("XYZ"), sym("BTC"), "10")
	require.NoError(t, f.db.Where("symbol = ?", "XYZ").Delete(&domain.Token{}).Error)

	price := dec("2")
	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, &price)
	assert.ErrorIs(t, err, ErrTokenNotWhitelisted)
	assert.Contains(t, err.Error(), "XYZ")
	assert.Equal(t, "50.00000000", f.balance(t, "XYZ"))
	assert.Equal(t, "absent", f.balance(t, "BTC"))
	assert.Equal(t, domain.StatusPending, f.status(t, req.ID))
}

func TestApprove_WhitelistCheckedBeforeBalance(t *testing.T) {
	f := setup(t)
	req := f.request(t, domain.TxSell, sym("XYZ"), nil, "10")
	require.NoError(t, f.db.Where("symbol = ?", "XYZ").Delete(&domain.Token{}).Error)

	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrTokenNotWhitelisted)
}

func TestApprove_ExecutionPriceRequiredForSwap(t *testing.T) {
	f := setup(t)
	f.fund(t, "USDT", "100")
	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")

	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidExecutionPrice)

	zero := decimal.Zero
	_, err = f.engine.Approve(context.Background(), req.ID, f.admin.ID, &zero)
	assert.ErrorIs(t, err, ErrInvalidExecutionPrice)

	neg := dec("-1")
	_, err = f.engine.Approve(context.Background(), req.ID, f.admin.ID, &neg)
	assert.ErrorIs(t, err, ErrInvalidExecutionPrice)

	assert.Equal(t, "100.00000000", f.balance(t, "USDT"))
	assert.Equal(t, domain.StatusPending, f.status(t, req.ID))
}

func TestApprove_UnknownIdentities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Approve(ctx, uuid.New(), f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	req := f.request(t, domain.TxBuy, nil, sym("XYZ"), "1")
	_, err = f.engine.Approve(ctx, req.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrActorNotFound)

	// holder ids are not admin ids
	_, err = f.engine.Approve(ctx, req.ID, f.holder.ID, nil)
	assert.ErrorIs(t, err, ErrActorNotFound)

	require.NoError(t, f.db.Delete(&domain.Holder{}, "id = ?", f.holder.ID).Error)
	_, err = f.engine.Approve(ctx, req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrHolderNotFound)
	assert.Equal(t, domain.StatusPending, f.status(t, req.ID))
}

func TestApprove_SameTokenSwapRejectedAtValidation(t *testing.T) {
	f := setup(t)
	f.fund(t, "USDT", "100")
	row := domain.Transaction{
		HolderID: f.holder.ID, Type: domain.TxSwap, FromToken: sym("USDT"), ToToken: sym("USDT"),
		Amount: dec("10"), Fee: dec("0.1"), NetAmount: dec("9.9"), Status: domain.StatusPending,
	}
	require.NoError(t, f.db.Create(&row).Error)

	price := dec("1")
	_, err := f.engine.Approve(context.Background(), row.ID, f.admin.ID, &price)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "100.00000000", f.balance(t, "USDT"))
}

func TestApprove_SecondAttemptIsAlreadyProcessed(t *testing.T) {
	f := setup(t)
	req := f.request(t, domain.TxBuy, nil, sym("XYZ"), "10")
	_, err := f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.Approve(context.Background(), req.ID, f.admin.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Contains(t, err.Error(), "approved")
	_, err = f.engine.Reject(context.Background(), req.ID, f.admin.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, "10.00000000", f.balance(t, "XYZ"))
}

func TestApprove_CommissionFailureKeepsApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "USDT", "100")
	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")
	require.NoError(t, f.db.Migrator().DropTable(&domain.Commission{}))

	price := dec("0.000023")
	_, err := f.engine.Approve(ctx, req.ID, f.admin.ID, &price)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, f.status(t, req.ID))
	assert.Equal(t, "60.00000000", f.balance(t, "USDT"))

	events, err := f.txs.Events(ctx, req.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, domain.EventCommissionFailed)

	require.NoError(t, f.db.AutoMigrate(&domain.Commission{}))
	n, err := f.engine.Commissions.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "USDT", "100")
	req := f.request(t, domain.TxSwap, sym("USDT"), sym("BTC"), "40")

	_, err := f.engine.Reject(ctx, req.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrActorNotFound)

	got, err := f.engine.Reject(ctx, req.ID, f.admin.ID, "price moved")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Equal(t, "100.00000000", f.balance(t, "USDT"))
	assert.Equal(t, "absent", f.balance(t, "BTC"))

	_, err = f.engine.Reject(ctx, req.ID, f.admin.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Contains(t, err.Error(), "rejected")
	assert.Equal(t, "100.00000000", f.balance(t, "USDT"))

	_, err = f.engine.Reject(ctx, uuid.New(), f.admin.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := f.txs.Events(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventRejected, events[1].EventType)
}

func TestSettle_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, "0.00091080", Settle(dec("39.6"), dec("0.000023")).StringFixed(8))
	assert.Equal(t, "0.00000001", Settle(dec("0.000000015"), dec("1")).StringFixed(8))
	assert.Equal(t, "0.00000000", Settle(dec("0.000000004"), dec("1")).StringFixed(8))
}
