// Package domain contains persistence models for the monetary ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionDirection represents debit or credit postings.
type TransactionDirection string

const (
	TransactionDirectionDebit  TransactionDirection = "debit"
	TransactionDirectionCredit TransactionDirection = "credit"
)

// Account holds a subscriber's balance in one currency.
type Account struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	SubscriberID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_subscriber_currency,priority:1"`
	CurrencyCode string          `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_subscriber_currency,priority:2"`
	Balance      decimal.Decimal `gorm:"type:numeric(15,5);not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "ledger_accounts" }

// Transaction is an immutable posting against an account. Ref is unique so a
// retried posting with the same reference is detected instead of applied
// twice.
type Transaction struct {
	ID        snowflake.ID         `gorm:"primaryKey"`
	Ref       string               `gorm:"type:text;not null;uniqueIndex:ux_ledger_transactions_ref"`
	AccountID snowflake.ID         `gorm:"not null;index"`
	Direction TransactionDirection `gorm:"type:text;not null"`
	Amount    decimal.Decimal      `gorm:"type:numeric(15,5);not null"`
	Memo      string               `gorm:"type:text"`
	CreatedAt time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "ledger_transactions" }
