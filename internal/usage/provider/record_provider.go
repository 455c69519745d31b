// Package provider ships the default usage source backed by the
// usage_records table.
package provider

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordProvider counts ingested usage rows for a resource key. It answers
// for every key, so it sits at the bottom of the provider order and more
// specific providers win by priority.
type RecordProvider struct {
	db *gorm.DB
}

func NewRecordProvider(db *gorm.DB) *RecordProvider {
	return &RecordProvider{db: db}
}

func (p *RecordProvider) Supports(resourceKey string) bool {
	return resourceKey != ""
}

func (p *RecordProvider) Usage(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (int64, error) {
	var total int64
	err := p.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(value), 0)
		 FROM usage_records
		 WHERE subscriber_id = ? AND resource_key = ?
		 AND recorded_at >= ? AND recorded_at < ?`,
		subscriberID,
		resourceKey,
		start,
		end,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (p *RecordProvider) UsageDetail(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (datatypes.JSONMap, error) {
	count, err := p.Usage(ctx, subscriberID, resourceKey, start, end)
	if err != nil {
		return nil, err
	}

	return datatypes.JSONMap{
		"resource_key":  resourceKey,
		"subscriber_id": subscriberID.String(),
		"period_start":  start.UTC().Format(time.RFC3339),
		"period_end":    end.UTC().Format(time.RFC3339),
		"count":         count,
		"provider":      "usage_records",
	}, nil
}

func (p *RecordProvider) Priority() int { return 0 }
