package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Provider answers usage questions for the resource keys it supports.
// Implementations report a count and an opaque detail payload over a
// half-open window [start, end).
type Provider interface {
	Supports(resourceKey string) bool
	Usage(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (int64, error)
	UsageDetail(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (datatypes.JSONMap, error)
	Priority() int
}

// BatchEntry is one per-key result of a best-effort batch query. Failed keys
// carry Err and a zero count instead of aborting the batch.
type BatchEntry struct {
	Usage int64
	Err   error
}

// Service routes usage queries to the highest-priority provider that
// supports the resource key. It applies no business logic of its own.
type Service interface {
	Usage(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (int64, error)
	UsageDetail(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (datatypes.JSONMap, error)
	BatchUsage(ctx context.Context, subscriberID snowflake.ID, resourceKeys []string, start, end time.Time) map[string]BatchEntry
	HasProvider(resourceKey string) bool
}

var ErrNoUsageSource = errors.New("no_usage_source")
