package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service moves money. Debit is the settlement path; Credit exists for
// seeding and test tooling. Both are idempotent on the transaction ref: a
// replayed ref returns the recorded transaction without moving money again.
type Service interface {
	Debit(ctx context.Context, ref string, accountID snowflake.ID, amount decimal.Decimal, memo string) (*Transaction, error)
	Credit(ctx context.Context, ref string, accountID snowflake.ID, amount decimal.Decimal, memo string) (*Transaction, error)
	// EnsureAccount returns the subscriber's account for a currency,
	// creating an empty one when missing.
	EnsureAccount(ctx context.Context, subscriberID snowflake.ID, currencyCode string) (*Account, error)
	GetAccount(ctx context.Context, accountID snowflake.ID) (*Account, error)
}

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrAccountNotFound   = errors.New("ledger_account_not_found")
	ErrInvalidAmount     = errors.New("invalid_ledger_amount")
	ErrInvalidRef        = errors.New("invalid_transaction_ref")
)
