package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Get(ctx context.Context, id string) (*PriceConfiguration, error)
	// ListBillableAt returns active configurations whose validity window
	// covers t. Cycle gating is the sweeper's concern.
	ListBillableAt(ctx context.Context, t time.Time) ([]*PriceConfiguration, error)
	Validate(ctx context.Context, cfg *PriceConfiguration) []string
}

var (
	ErrPriceConfigurationNotFound = errors.New("price_configuration_not_found")
	ErrInvalidPriceConfiguration  = errors.New("invalid_price_configuration")
)
