package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset is one holder's balance of one token. Version is bumped on every
// write and used as the optimistic-concurrency guard.
type Asset struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HolderID    uuid.UUID       `gorm:"column:holder_id;type:uuid;not null;uniqueIndex:idx_assets_holder_token" json:"holder_id"`
	TokenSymbol string          `gorm:"column:token_symbol;type:varchar(16);not null;uniqueIndex:idx_assets_holder_token" json:"token_symbol"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(36,8);not null" json:"amount"`
	Version     int64           `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
