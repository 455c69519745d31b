// Package domain contains persistence models for raw usage ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// UsageRecord stores a single unit of metered activity for a subscriber.
type UsageRecord struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	SubscriberID snowflake.ID      `gorm:"not null;index:ix_usage_records_lookup,priority:1"`
	ResourceKey  string            `gorm:"type:text;not null;index:ix_usage_records_lookup,priority:2"`
	Value        int64             `gorm:"not null;default:1"`
	RecordedAt   time.Time         `gorm:"not null;index:ix_usage_records_lookup,priority:3"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
