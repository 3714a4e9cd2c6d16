package ledger

import (
	"context"
	"errors"
	"time"

	"lethex-backend/internal/database"
	"lethex-backend/internal/domain"
	"lethex-backend/internal/pkg/keylock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scale is the fixed number of decimal places kept on every balance.
const Scale = 8

// Ledger is the only writer of asset rows. Bind it to a transaction with
// WithTx so balance changes commit or roll back with the caller's unit of work.
type Ledger struct {
	DB    *gorm.DB
	Locks *keylock.Locks
}

// PairKey is the lock key for one (holder, token) balance.
func PairKey(holderID uuid.UUID, symbol string) string {
	return "asset:" + holderID.String() + ":" + symbol
}

// WithTx returns a copy of the ledger that reads and writes through tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{DB: tx, Locks: l.Locks}
}

// Lock serializes callers on the given keys. A ledger without Locks does not
// block.
func (l *Ledger) Lock(keys ...string) func() {
	if l.Locks == nil {
		return func() {}
	}
	return l.Locks.Lock(keys...)
}

// GetBalance returns the holder's balance row for symbol, or ErrNoBalance.
func (l *Ledger) GetBalance(ctx context.Context, holderID uuid.UUID, symbol string) (*domain.Asset, error) {
	q := l.DB.WithContext(ctx)
	if database.IsPostgres(l.DB) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a domain.Asset
	if err := q.Where("holder_id = ? AND token_symbol = ?", holderID, symbol).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBalance
		}
		return nil, err
	}
	return &a, nil
}

// ListByHolder returns every balance row of a holder ordered by symbol.
func (l *Ledger) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]domain.Asset, error) {
	var out []domain.Asset
	err := l.DB.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Order("token_symbol ASC").
		Find(&out).Error
	return out, err
}

// Credit adds amount to the balance, creating the row on first credit.
func (l *Ledger) Credit(ctx context.Context, holderID uuid.UUID, symbol string, amount decimal.Decimal) (*domain.Asset, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(Scale)
	a, err := l.GetBalance(ctx, holderID, symbol)
	if errors.Is(err, ErrNoBalance) {
		return l.create(ctx, holderID, symbol, amount)
	}
	if err != nil {
		return nil, err
	}
	return l.write(ctx, a, a.Amount.Add(amount))
}

// Debit subtracts amount from the balance. It fails with
// ErrInsufficientBalance when the row is missing or would go negative.
func (l *Ledger) Debit(ctx context.Context, holderID uuid.UUID, symbol string, amount decimal.Decimal) (*domain.Asset, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(Scale)
	a, err := l.GetBalance(ctx, holderID, symbol)
	if errors.Is(err, ErrNoBalance) {
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}
	next := a.Amount.Sub(amount)
	if next.IsNegative() {
		return nil, ErrInsufficientBalance
	}
	return l.write(ctx, a, next)
}

// SetBalance overwrites the balance with amount (admin assignment).
func (l *Ledger) SetBalance(ctx context.Context, holderID uuid.UUID, symbol string, amount decimal.Decimal) (*domain.Asset, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(Scale)
	a, err := l.GetBalance(ctx, holderID, symbol)
	if errors.Is(err, ErrNoBalance) {
		return l.create(ctx, holderID, symbol, amount)
	}
	if err != nil {
		return nil, err
	}
	return l.write(ctx, a, amount)
}

func (l *Ledger) create(ctx context.Context, holderID uuid.UUID, symbol string, amount decimal.Decimal) (*domain.Asset, error) {
	a := domain.Asset{
		HolderID:    holderID,
		TokenSymbol: symbol,
		Amount:      amount,
	}
	if err := l.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// write stores next guarded by the row version read earlier.
func (l *Ledger) write(ctx context.Context, a *domain.Asset, next decimal.Decimal) (*domain.Asset, error) {
	now := time.Now()
	res := l.DB.WithContext(ctx).Model(&domain.Asset{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]interface{}{
			"amount":     next.Round(Scale),
			"version":    a.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentModification
	}
	a.Amount = next.Round(Scale)
	a.Version++
	a.UpdatedAt = now
	return a, nil
}
