package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TxSwap TransactionType = "swap"
	TxBuy  TransactionType = "buy"
	TxSell TransactionType = "sell"
)

// Valid reports whether t is one of swap, buy or sell.
func (t TransactionType) Valid() bool {
	switch t {
	case TxSwap, TxBuy, TxSell:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

// Transaction is a holder request. Status moves from pending exactly once.
type Transaction struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HolderID       uuid.UUID           `gorm:"column:holder_id;type:uuid;not null;index" json:"holder_id"`
	Type           TransactionType     `gorm:"column:transaction_type;type:varchar(10);not null" json:"transaction_type"`
	FromToken      *string             `gorm:"column:from_token;type:varchar(16)" json:"from_token"`
	ToToken        *string             `gorm:"column:to_token;type:varchar(16)" json:"to_token"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(36,8);not null" json:"amount"`
	Fee            decimal.Decimal     `gorm:"column:fee;type:numeric(36,8);not null" json:"fee"`
	NetAmount      decimal.Decimal     `gorm:"column:net_amount;type:numeric(36,8);not null" json:"net_amount"`
	ExecutionPrice decimal.NullDecimal `gorm:"column:execution_price;type:numeric(36,18)" json:"execution_price"`
	ReceivedAmount decimal.NullDecimal `gorm:"column:received_amount;type:numeric(36,8)" json:"received_amount"`
	Status         TransactionStatus   `gorm:"column:status;type:varchar(10);not null;index" json:"status"`
	RequestedAt    time.Time           `gorm:"column:requested_at;not null" json:"requested_at"`
	ApprovedAt     *time.Time          `gorm:"column:approved_at" json:"approved_at"`
	ApprovedBy     *uuid.UUID          `gorm:"column:approved_by;type:uuid" json:"approved_by"`
	Notes          *string             `gorm:"column:notes" json:"notes"`
	CreatedAt      time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Symbols returns the non-nil token symbols referenced by the transaction.
func (t *Transaction) Symbols() []string {
	var out []string
	if t.FromToken != nil {
		out = append(out, *t.FromToken)
	}
	if t.ToToken != nil {
		out = append(out, *t.ToToken)
	}
	return out
}
