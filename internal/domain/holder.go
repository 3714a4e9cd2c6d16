package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holder is a fund participant. AccessCode is the sole login credential.
type Holder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	AccessCode string    `gorm:"column:access_code;type:varchar(32);not null;uniqueIndex" json:"access_code"`
	Email      *string   `gorm:"column:email" json:"email"`
	Phone      *string   `gorm:"column:phone" json:"phone"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Holder) TableName() string {
	return "holders"
}

func (h *Holder) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
