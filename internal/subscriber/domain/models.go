// Package domain contains persistence models for billable subscribers.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Subscriber is an account holder whose resource consumption is billed. Role
// membership decides which price configurations apply; identity and
// authentication live elsewhere.
type Subscriber struct {
	ID         snowflake.ID                `gorm:"primaryKey"`
	ExternalID string                      `gorm:"type:text;not null;uniqueIndex"`
	Roles      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Active     bool                        `gorm:"not null;default:true;index"`
	CreatedAt  time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscriber) TableName() string { return "subscribers" }

type Repository interface {
	Get(ctx context.Context, id snowflake.ID) (*Subscriber, error)
	// ListByRoles returns active subscribers holding at least one of the
	// given roles. An empty role list matches nobody.
	ListByRoles(ctx context.Context, roles []string) ([]*Subscriber, error)
}
