package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
)

// SummaryRow aggregates a subscriber's bills per price configuration.
type SummaryRow struct {
	PriceConfigurationID snowflake.ID    `json:"price_configuration_id"`
	Title                string          `json:"title"`
	TotalCount           int64           `json:"total_count"`
	PaidCount            int64           `json:"paid_count"`
	FailedCount          int64           `json:"failed_count"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
}

type Service interface {
	// GenerateBill creates a Pending bill for the subscriber, configuration
	// and cycle window containing billTime. Exactly one bill can exist per
	// (subscriber, configuration, window).
	GenerateBill(ctx context.Context, subscriber *subscriberdomain.Subscriber, cfg *pricedomain.PriceConfiguration, billTime time.Time) (*Bill, error)
	// ProcessBill drives a Pending bill through settlement against the
	// ledger. Settlement failures leave the bill Failed and are returned.
	ProcessBill(ctx context.Context, bill *Bill) error
	// RetryBill resets a Failed bill to Pending and reprocesses it.
	RetryBill(ctx context.Context, bill *Bill) error
	// CancelBill cancels a bill where the state machine permits, recording
	// the reason.
	CancelBill(ctx context.Context, bill *Bill, reason string) error

	QueryBills(ctx context.Context, subscriberID snowflake.ID, criteria map[string]any) ([]*Bill, error)
	BillSummary(ctx context.Context, subscriberID snowflake.ID, start, end time.Time) ([]SummaryRow, error)
}

var (
	ErrBillAlreadyExists = errors.New("bill_already_exists")
	ErrZeroUsage         = errors.New("zero_usage")
	ErrInvalidBillState  = errors.New("invalid_bill_state")
)
