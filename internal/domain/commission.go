package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commission is the fee taken on an approved swap. Insert-only, at most one
// per transaction.
type Commission struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex" json:"transaction_id"`
	HolderID      uuid.UUID       `gorm:"column:holder_id;type:uuid;not null;index" json:"holder_id"`
	FeeAmount     decimal.Decimal `gorm:"column:fee_amount;type:numeric(36,8);not null" json:"fee_amount"`
	FeeToken      string          `gorm:"column:fee_token;type:varchar(16);not null" json:"fee_token"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Commission) TableName() string {
	return "commissions"
}

func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
