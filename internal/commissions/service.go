package commissions

import (
	"context"
	"errors"
	"sort"

	"lethex-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidCommission = errors.New("Commission requires a positive fee and a fee token")
	ErrCommissionExists  = errors.New("Commission already recorded for this transaction")
)

// Service records swap fees and reports on them.
type Service struct {
	DB *gorm.DB
}

// WithTx returns a copy of the service bound to tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{DB: tx}
}

// Record inserts one commission row. A second row for the same transaction
// is refused with ErrCommissionExists.
func (s *Service) Record(ctx context.Context, transactionID, holderID uuid.UUID, feeAmount decimal.Decimal, feeToken string) (*domain.Commission, error) {
	if !feeAmount.IsPositive() || feeToken == "" {
		return nil, ErrInvalidCommission
	}
	c := domain.Commission{
		TransactionID: transactionID,
		HolderID:      holderID,
		FeeAmount:     feeAmount,
		FeeToken:      feeToken,
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(&c)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCommissionExists
	}
	return &c, nil
}

// Reconcile inserts the commission rows missing for approved swaps with a
// positive fee and returns how many were created.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	var missing []domain.Transaction
	err := s.DB.WithContext(ctx).
		Where("transaction_type = ? AND status = ?", domain.TxSwap, domain.StatusApproved).
		Where("id NOT IN (?)", s.DB.Model(&domain.Commission{}).Select("transaction_id")).
		Find(&missing).Error
	if err != nil {
		return 0, err
	}
	created := 0
	for _, tx := range missing {
		if !tx.Fee.IsPositive() || tx.FromToken == nil {
			continue
		}
		if _, err := s.Record(ctx, tx.ID, tx.HolderID, tx.Fee, *tx.FromToken); err != nil {
			if errors.Is(err, ErrCommissionExists) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

// HolderTotal is the fee total one holder paid in one token.
type HolderTotal struct {
	HolderID         uuid.UUID       `json:"holder_id"`
	HolderName       string          `json:"holder_name"`
	FeeToken         string          `json:"fee_token"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	TransactionCount int             `json:"transaction_count"`
}

// Summary is the commission report: totals per token and per holder.
type Summary struct {
	TotalsByToken map[string]decimal.Decimal `json:"totals_by_token"`
	ByHolder      []HolderTotal              `json:"by_holder"`
}

// Summary aggregates every commission row. Sums are done in decimal, not in
// SQL, so they stay exact on SQLite.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var rows []domain.Commission
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	type key struct {
		holder uuid.UUID
		token  string
	}
	totals := map[key]*HolderTotal{}
	out := &Summary{TotalsByToken: map[string]decimal.Decimal{}}
	holderIDs := map[uuid.UUID]bool{}
	for _, c := range rows {
		out.TotalsByToken[c.FeeToken] = out.TotalsByToken[c.FeeToken].Add(c.FeeAmount)
		k := key{c.HolderID, c.FeeToken}
		t, ok := totals[k]
		if !ok {
			t = &HolderTotal{HolderID: c.HolderID, FeeToken: c.FeeToken}
			totals[k] = t
		}
		t.TotalFees = t.TotalFees.Add(c.FeeAmount)
		t.TransactionCount++
		holderIDs[c.HolderID] = true
	}

	names := map[uuid.UUID]string{}
	if len(holderIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(holderIDs))
		for id := range holderIDs {
			ids = append(ids, id)
		}
		var holders []domain.Holder
		if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Select("id, name").Find(&holders).Error; err != nil {
			return nil, err
		}
		for _, h := range holders {
			names[h.ID] = h.Name
		}
	}

	out.ByHolder = make([]HolderTotal, 0, len(totals))
	for _, t := range totals {
		t.HolderName = names[t.HolderID]
		if t.HolderName == "" {
			t.HolderName = "Unknown"
		}
		out.ByHolder = append(out.ByHolder, *t)
	}
	sort.Slice(out.ByHolder, func(i, j int) bool {
		if out.ByHolder[i].HolderName != out.ByHolder[j].HolderName {
			return out.ByHolder[i].HolderName < out.ByHolder[j].HolderName
		}
		return out.ByHolder[i].FeeToken < out.ByHolder[j].FeeToken
	})
	return out, nil
}

// List returns commission rows newest first, optionally for one holder.
func (s *Service) List(ctx context.Context, holderID *uuid.UUID) ([]domain.Commission, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC")
	if holderID != nil {
		q = q.Where("holder_id = ?", *holderID)
	}
	var out []domain.Commission
	return out, q.Find(&out).Error
}
