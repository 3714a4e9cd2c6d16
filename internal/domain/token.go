package domain

import "time"

// Token is a whitelisted, tradeable symbol (token_whitelist table).
type Token struct {
	Symbol      string    `gorm:"column:symbol;type:varchar(16);primaryKey" json:"symbol"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	PriceFeedID string    `gorm:"column:price_feed_id;not null" json:"price_feed_id"`
	LogoURL     *string   `gorm:"column:logo_url" json:"logo_url"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Token) TableName() string {
	return "token_whitelist"
}
