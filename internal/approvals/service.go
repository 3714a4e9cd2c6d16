// Package approvals settles pending transactions. It is the only code that
// moves a transaction out of pending and the only caller of the ledger's
// mutators on behalf of a transaction.
package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lethex-backend/internal/commissions"
	"lethex-backend/internal/domain"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/ledger"
	"lethex-backend/internal/tokens"
	"lethex-backend/internal/transactions"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invalidator drops derived views once balances change.
type Invalidator interface {
	Invalidate()
}

type Engine struct {
	DB          *gorm.DB
	Ledger      *ledger.Ledger
	Commissions *commissions.Service
	Views       Invalidator
}

// TxKey is the lock key for one transaction id.
func TxKey(id uuid.UUID) string {
	return "tx:" + id.String()
}

// lock loads the transaction outside any DB transaction and takes the
// per-transaction lock plus one lock per balance it can touch. Locks are
// always taken before a DB transaction is opened.
func (e *Engine) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	pre, err := transactions.FindByID(ctx, e.DB, id)
	if err != nil {
		if errors.Is(err, transactions.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	keys := []string{TxKey(id)}
	for _, sym := range pre.Symbols() {
		keys = append(keys, ledger.PairKey(pre.HolderID, sym))
	}
	return e.Ledger.Lock(keys...), nil
}

// load re-reads the transaction inside db and checks it is still pending.
func load(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Transaction, error) {
	t, err := transactions.FindByID(ctx, db, id)
	if err != nil {
		if errors.Is(err, transactions.ErrTransactionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, t.Status)
	}
	return t, nil
}

func resolveActor(ctx context.Context, db *gorm.DB, actorID uuid.UUID) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Admin{}).Where("id = ?", actorID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrActorNotFound
	}
	return nil
}

// flip moves the transaction out of pending. The pending predicate makes it
// a compare-and-swap: zero rows means another writer got there first.
func flip(ctx context.Context, db *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	res := db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func ledgerErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, ledger.ErrConcurrentModification):
		return ErrConcurrentModification
	}
	return err
}

// Approve settles a pending transaction. price is required for swaps and
// ignored otherwise. Every check runs before the first write, and the status
// flip is the first write, so a failure leaves no trace. Commission
// recording is the one exception: it runs in a savepoint and a failure there
// is logged without undoing the approval.
func (e *Engine) Approve(ctx context.Context, id, actorID uuid.UUID, price *decimal.Decimal) (*domain.Transaction, error) {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *domain.Transaction
	err = e.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		t, err := load(ctx, db, id)
		if err != nil {
			return err
		}
		if _, err := holders.FindByID(ctx, db, t.HolderID); err != nil {
			if errors.Is(err, holders.ErrHolderNotFound) {
				return ErrHolderNotFound
			}
			return err
		}
		if err := resolveActor(ctx, db, actorID); err != nil {
			return err
		}
		if err := checkShape(t); err != nil {
			return err
		}
		if t.Type == domain.TxSwap && (price == nil || !price.IsPositive()) {
			return ErrInvalidExecutionPrice
		}
		missing, err := tokens.Missing(ctx, db, t.Symbols()...)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, strings.Join(missing, ", "))
		}

		led := e.Ledger.WithTx(db)
		if t.Type == domain.TxSwap || t.Type == domain.TxSell {
			bal, err := led.GetBalance(ctx, t.HolderID, *t.FromToken)
			if errors.Is(err, ledger.ErrNoBalance) {
				return ErrInsufficientBalance
			}
			if err != nil {
				return err
			}
			if bal.Amount.LessThan(t.Amount) {
				return ErrInsufficientBalance
			}
		}

		now := time.Now()
		fields := map[string]interface{}{
			"status":      domain.StatusApproved,
			"approved_at": now,
			"approved_by": actorID,
			"updated_at":  now,
		}
		var received decimal.Decimal
		if t.Type == domain.TxSwap {
			received = Settle(t.NetAmount, *price)
			fields["execution_price"] = *price
			fields["received_amount"] = received
			t.ExecutionPrice = decimal.NewNullDecimal(*price)
			t.ReceivedAmount = decimal.NewNullDecimal(received)
		}
		if err := flip(ctx, db, t.ID, fields); err != nil {
			return err
		}
		t.Status = domain.StatusApproved
		t.ApprovedAt = &now
		t.ApprovedBy = &actorID
		t.UpdatedAt = now

		switch t.Type {
		case domain.TxSwap:
			if _, err := led.Debit(ctx, t.HolderID, *t.FromToken, t.Amount); err != nil {
				return ledgerErr(err)
			}
			if _, err := led.Credit(ctx, t.HolderID, *t.ToToken, received); err != nil {
				return ledgerErr(err)
			}
		case domain.TxBuy:
			if _, err := led.Credit(ctx, t.HolderID, *t.ToToken, t.Amount); err != nil {
				return ledgerErr(err)
			}
		case domain.TxSell:
			if _, err := led.Debit(ctx, t.HolderID, *t.FromToken, t.Amount); err != nil {
				return ledgerErr(err)
			}
		}

		if t.Type == domain.TxSwap && t.Fee.IsPositive() {
			e.recordCommission(ctx, db, t, actorID)
		}

		data := map[string]interface{}{"status": t.Status}
		if t.Type == domain.TxSwap {
			data["execution_price"] = price.String()
			data["received_amount"] = received.StringFixed(ledger.Scale)
		}
		if err := transactions.RecordEvent(ctx, db, &t.ID, t.HolderID, domain.EventApproved, &actorID, data); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", id.String()).Str("actor_id", actorID.String()).Msg("approval failed")
		return nil, err
	}

	if e.Views != nil {
		e.Views.Invalidate()
	}
	ev := log.Info().Str("transaction_id", out.ID.String()).Str("holder_id", out.HolderID.String()).
		Str("actor_id", actorID.String()).Str("type", string(out.Type)).Str("amount", out.Amount.String())
	if out.ReceivedAmount.Valid {
		ev = ev.Str("received_amount", out.ReceivedAmount.Decimal.StringFixed(ledger.Scale))
	}
	ev.Msg("transaction approved")
	return out, nil
}

// recordCommission writes the fee row under a savepoint. A failure rolls back
// only the savepoint and leaves a COMMISSION_FAILED event for Reconcile.
func (e *Engine) recordCommission(ctx context.Context, db *gorm.DB, t *domain.Transaction, actorID uuid.UUID) {
	err := db.Transaction(func(sp *gorm.DB) error {
		_, err := e.Commissions.WithTx(sp).Record(ctx, t.ID, t.HolderID, t.Fee, *t.FromToken)
		return err
	})
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("transaction_id", t.ID.String()).Str("fee", t.Fee.String()).Msg("commission not recorded")
	if evErr := transactions.RecordEvent(ctx, db, &t.ID, t.HolderID, domain.EventCommissionFailed, &actorID, map[string]interface{}{
		"fee":       t.Fee.StringFixed(ledger.Scale),
		"fee_token": *t.FromToken,
		"error":     err.Error(),
	}); evErr != nil {
		log.Warn().Err(evErr).Str("transaction_id", t.ID.String()).Msg("commission failure event not recorded")
	}
}

// Reject closes a pending transaction without touching balances.
func (e *Engine) Reject(ctx context.Context, id, actorID uuid.UUID, reason string) (*domain.Transaction, error) {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *domain.Transaction
	err = e.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		t, err := load(ctx, db, id)
		if err != nil {
			return err
		}
		if err := resolveActor(ctx, db, actorID); err != nil {
			return err
		}
		now := time.Now()
		if err := flip(ctx, db, t.ID, map[string]interface{}{
			"status":      domain.StatusRejected,
			"approved_at": now,
			"approved_by": actorID,
			"updated_at":  now,
		}); err != nil {
			return err
		}
		t.Status = domain.StatusRejected
		t.ApprovedAt = &now
		t.ApprovedBy = &actorID
		t.UpdatedAt = now

		data := map[string]interface{}{"status": t.Status}
		if r := strings.TrimSpace(reason); r != "" {
			data["reason"] = r
		}
		if err := transactions.RecordEvent(ctx, db, &t.ID, t.HolderID, domain.EventRejected, &actorID, data); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", id.String()).Str("actor_id", actorID.String()).Msg("rejection failed")
		return nil, err
	}
	log.Info().Str("transaction_id", out.ID.String()).Str("holder_id", out.HolderID.String()).
		Str("actor_id", actorID.String()).Msg("transaction rejected")
	return out, nil
}

// checkShape re-validates the token fields a request must carry. Rows written
// by intake always pass; this guards rows inserted by other means.
func checkShape(t *domain.Transaction) error {
	switch t.Type {
	case domain.TxSwap:
		if t.FromToken == nil || t.ToToken == nil {
			return fmt.Errorf("%w: swap requires from_token and to_token", ErrInvalidRequest)
		}
		if *t.FromToken == *t.ToToken {
			return fmt.Errorf("%w: cannot swap a token for itself", ErrInvalidRequest)
		}
	case domain.TxBuy:
		if t.ToToken == nil {
			return fmt.Errorf("%w: buy requires to_token", ErrInvalidRequest)
		}
	case domain.TxSell:
		if t.FromToken == nil {
			return fmt.Errorf("%w: sell requires from_token", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidRequest, t.Type)
	}
	return nil
}

// Settle is the swap credit: net amount times execution price, rounded half
// up to the ledger scale.
func Settle(net, price decimal.Decimal) decimal.Decimal {
	return net.Mul(price).Round(ledger.Scale)
}
