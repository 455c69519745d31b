// Package domain contains the bill record and its settlement state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillStatus tracks settlement progress.
type BillStatus string

const (
	BillStatusPending    BillStatus = "pending"
	BillStatusProcessing BillStatus = "processing"
	BillStatusPaid       BillStatus = "paid"
	BillStatusFailed     BillStatus = "failed"
	BillStatusCancelled  BillStatus = "cancelled"
)

// IsTerminal reports whether no further transition is legal.
func (s BillStatus) IsTerminal() bool {
	return s == BillStatusPaid || s == BillStatusCancelled
}

// CanTransitionTo encodes the settlement state machine. Failed may return to
// Pending for a retry; Paid and Cancelled accept nothing.
func (s BillStatus) CanTransitionTo(next BillStatus) bool {
	switch s {
	case BillStatusPending:
		return next == BillStatusProcessing || next == BillStatusCancelled
	case BillStatusProcessing:
		return next == BillStatusPaid || next == BillStatusFailed
	case BillStatusFailed:
		return next == BillStatusPending
	case BillStatusPaid, BillStatusCancelled:
		return false
	}
	return false
}

// Bill is one settlement record for one subscriber, one price configuration,
// one period. The composite unique index is the de-duplication key that keeps
// generation idempotent under at-least-once scheduling. Bills are never
// deleted by the engine.
type Bill struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	SubscriberID         snowflake.ID `gorm:"not null;index;uniqueIndex:ux_bills_period,priority:1"`
	PriceConfigurationID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_bills_period,priority:2"`
	LedgerAccountID      snowflake.ID `gorm:"not null;index"`

	BillTime    time.Time `gorm:"not null;index"`
	PeriodStart time.Time `gorm:"not null;uniqueIndex:ux_bills_period,priority:3"`
	PeriodEnd   time.Time `gorm:"not null;uniqueIndex:ux_bills_period,priority:4"`

	UsageCount  int64             `gorm:"not null"`
	UsageDetail datatypes.JSONMap `gorm:"type:jsonb"`

	CurrencyCode  string          `gorm:"type:text;not null"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(15,5);not null"`
	GrossAmount   decimal.Decimal `gorm:"type:numeric(15,5);not null"`
	SettledAmount decimal.Decimal `gorm:"type:numeric(15,5);not null"`

	Status               BillStatus `gorm:"type:text;not null;index"`
	FailureReason        *string    `gorm:"type:text"`
	SettledAt            *time.Time `gorm:""`
	LedgerTransactionRef *string    `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }
