package domain

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, id string) (*PriceConfiguration, error)
	ListActive(ctx context.Context) ([]*PriceConfiguration, error)
	ListBillableAt(ctx context.Context, t time.Time) ([]*PriceConfiguration, error)
}
