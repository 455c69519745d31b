package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, bill *Bill) error
	Save(ctx context.Context, bill *Bill) error
	Get(ctx context.Context, id snowflake.ID) (*Bill, error)
	ExistsBill(ctx context.Context, subscriberID, priceConfigurationID snowflake.ID, periodStart, periodEnd time.Time) (bool, error)
	FindPending(ctx context.Context, limit int) ([]*Bill, error)
	// FindRetryable returns Failed bills last touched before the cutoff.
	FindRetryable(ctx context.Context, failedBefore time.Time, limit int) ([]*Bill, error)
}
