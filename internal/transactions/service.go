package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lethex-backend/internal/domain"
	"lethex-backend/internal/holders"
	"lethex-backend/internal/ledger"
	"lethex-backend/internal/tokens"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultFeeRate is the swap commission (1%).
var DefaultFeeRate = decimal.RequireFromString("0.01")

// Service accepts holder requests and reads the transaction log. It never
// changes a transaction's status; that belongs to the approval engine.
type Service struct {
	DB      *gorm.DB
	FeeRate decimal.Decimal
}

// CreateInput is the holder-supplied part of a request.
type CreateInput struct {
	FromToken *string         `json:"from_token"`
	ToToken   *string         `json:"to_token"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     *string         `json:"notes"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func (s *Service) feeRate() decimal.Decimal {
	if s.FeeRate.IsZero() {
		return DefaultFeeRate
	}
	return s.FeeRate
}

// Quote computes fee and net amount for a request of the given type.
func Quote(typ domain.TransactionType, amount, feeRate decimal.Decimal) (fee, net decimal.Decimal) {
	if typ != domain.TxSwap {
		return decimal.Zero, amount
	}
	fee = amount.Mul(feeRate).Round(ledger.Scale)
	return fee, amount.Sub(fee)
}

// Create validates a request and stores it as pending.
func (s *Service) Create(ctx context.Context, holderID uuid.UUID, typ domain.TransactionType, in CreateInput) (*domain.Transaction, error) {
	if !typ.Valid() {
		return nil, invalid("unknown transaction type %q", typ)
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if !in.Amount.Round(ledger.Scale).Equal(in.Amount) {
		return nil, invalid("amount supports at most %d decimal places", ledger.Scale)
	}
	from := normalize(in.FromToken)
	to := normalize(in.ToToken)

	switch typ {
	case domain.TxSwap:
		if from == nil || to == nil {
			return nil, invalid("swap requires from_token and to_token")
		}
		if *from == *to {
			return nil, invalid("cannot swap a token for itself")
		}
	case domain.TxBuy:
		if to == nil {
			return nil, invalid("buy requires to_token")
		}
		from = nil
	case domain.TxSell:
		if from == nil {
			return nil, invalid("sell requires from_token")
		}
		to = nil
	}

	if _, err := holders.FindByID(ctx, s.DB, holderID); err != nil {
		return nil, err
	}
	probe := domain.Transaction{FromToken: from, ToToken: to}
	missing, err := tokens.Missing(ctx, s.DB, probe.Symbols()...)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, invalid("token %s is not whitelisted", strings.Join(missing, ", "))
	}

	fee, net := Quote(typ, in.Amount, s.feeRate())
	var notes *string
	if in.Notes != nil && strings.TrimSpace(*in.Notes) != "" {
		n := strings.TrimSpace(*in.Notes)
		notes = &n
	}
	tx := domain.Transaction{
		HolderID:    holderID,
		Type:        typ,
		FromToken:   from,
		ToToken:     to,
		Amount:      in.Amount,
		Fee:         fee,
		NetAmount:   net,
		Status:      domain.StatusPending,
		RequestedAt: time.Now(),
		Notes:       notes,
	}
	err = s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(&tx).Error; err != nil {
			return err
		}
		return RecordEvent(ctx, db, &tx.ID, holderID, domain.EventCreated, nil, map[string]interface{}{
			"transaction_type": tx.Type,
			"from_token":       tx.FromToken,
			"to_token":         tx.ToToken,
			"amount":           tx.Amount,
			"fee":              tx.Fee,
			"net_amount":       tx.NetAmount,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("transaction_id", tx.ID.String()).Str("holder_id", holderID.String()).
		Str("type", string(typ)).Str("amount", tx.Amount.String()).Msg("transaction requested")
	return &tx, nil
}

func normalize(s *string) *string {
	if s == nil {
		return nil
	}
	v := tokens.NormalizeSymbol(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Get loads one transaction.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return FindByID(ctx, s.DB, id)
}

// FindByID loads a transaction through db, which may be a transaction.
func FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListPending returns the approval queue, oldest request first.
func (s *Service) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := s.DB.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("requested_at ASC").
		Find(&out).Error
	return out, err
}

// ListHistory returns processed (approved or rejected) transactions, most
// recently processed first, optionally for one holder.
func (s *Service) ListHistory(ctx context.Context, holderID *uuid.UUID) ([]domain.Transaction, error) {
	q := s.DB.WithContext(ctx).
		Where("status IN ?", []domain.TransactionStatus{domain.StatusApproved, domain.StatusRejected}).
		Order("approved_at DESC")
	if holderID != nil {
		q = q.Where("holder_id = ?", *holderID)
	}
	var out []domain.Transaction
	return out, q.Find(&out).Error
}

// ListByHolder returns every request of a holder, newest first.
func (s *Service) ListByHolder(ctx context.Context, holderID uuid.UUID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := s.DB.WithContext(ctx).
		Where("holder_id = ?", holderID).
		Order("requested_at DESC").
		Find(&out).Error
	return out, err
}

// Events returns the audit trail of one transaction in order.
func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]domain.TransactionEvent, error) {
	var out []domain.TransactionEvent
	err := s.DB.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// RecordEvent appends one audit row through db.
func RecordEvent(ctx context.Context, db *gorm.DB, txID *uuid.UUID, holderID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(&domain.TransactionEvent{
		TransactionID: txID,
		HolderID:      holderID,
		EventType:     eventType,
		ActorID:       actorID,
		EventData:     datatypes.JSON(b),
	}).Error
}
