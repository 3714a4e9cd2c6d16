package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventCreated          = "CREATED"
	EventApproved         = "APPROVED"
	EventRejected         = "REJECTED"
	EventBalanceAssigned  = "BALANCE_ASSIGNED"
	EventCommissionFailed = "COMMISSION_FAILED"
)

// TransactionEvent is an append-only audit row. TransactionID is nil for
// events not tied to a transaction (admin balance assignment).
type TransactionEvent struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TransactionID *uuid.UUID     `gorm:"column:transaction_id;type:uuid;index" json:"transaction_id"`
	HolderID      uuid.UUID      `gorm:"column:holder_id;type:uuid;not null;index" json:"holder_id"`
	EventType     string         `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	ActorID       *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	EventData     datatypes.JSON `gorm:"column:event_data" json:"event_data"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (TransactionEvent) TableName() string {
	return "transaction_events"
}

func (e *TransactionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
