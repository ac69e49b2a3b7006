package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense mirrors the tracker's expenses table (read-only here).
// Only the stats provider reads it; the tracker service owns the writes.
type Expense struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(8);default:'KGS'" json:"currency"`
	Category    string          `gorm:"not null" json:"category"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	Date        time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Income mirrors the tracker's income table (read-only here).
type Income struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(8);default:'KGS'" json:"currency"`
	Category    string          `gorm:"not null" json:"category"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	Date        time.Time       `gorm:"type:date;not null" json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

func (Income) TableName() string {
	return "income"
}
