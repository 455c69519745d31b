// Package domain contains persistence models for billable resource pricing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meterbill/internal/billingcycle"
	"gorm.io/datatypes"
)

// PriceTier is one band of a tiered schedule. Usage between Min (exclusive
// relative to consumed units) and Max is billed at UnitPrice.
type PriceTier struct {
	Min       int64           `json:"min"`
	Max       int64           `json:"max"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PriceConfiguration defines how one metered resource is billed. It is
// authored by an operator and read-only to the billing engine.
type PriceConfiguration struct {
	ID           snowflake.ID          `gorm:"primaryKey"`
	ResourceKey  string                `gorm:"type:text;not null;index"`
	Title        string                `gorm:"type:text;not null"`
	CurrencyCode string                `gorm:"type:text;not null"`
	Cycle        billingcycle.FeeCycle `gorm:"type:text;not null"`

	UnitPrice  decimal.Decimal  `gorm:"type:numeric(15,5);not null"`
	CapPrice   *decimal.Decimal `gorm:"type:numeric(15,5)"`
	FloorPrice *decimal.Decimal `gorm:"type:numeric(15,5)"`
	FreeQuota  *int64           `gorm:""`

	// MinAmount/MaxAmount clamp the raw usage count before pricing.
	MinAmount int64  `gorm:"not null;default:0"`
	MaxAmount *int64 `gorm:""`

	TierSchedule datatypes.JSONSlice[PriceTier] `gorm:"type:jsonb"`
	StrategyName *string                        `gorm:"type:text"`

	ValidFrom       *time.Time                  `gorm:""`
	ValidTo         *time.Time                  `gorm:""`
	Active          bool                        `gorm:"not null;default:false;index"`
	ApplicableRoles datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Remark          *string                     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PriceConfiguration) TableName() string { return "price_configurations" }

// InValidPeriod reports whether the configuration's effective window covers t.
func (p *PriceConfiguration) InValidPeriod(t time.Time) bool {
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && t.After(*p.ValidTo) {
		return false
	}
	return true
}

// ClampUsage bounds a raw usage count to [MinAmount, MaxAmount].
func (p *PriceConfiguration) ClampUsage(usage int64) int64 {
	if p.MaxAmount != nil && usage > *p.MaxAmount {
		usage = *p.MaxAmount
	}
	if usage < p.MinAmount {
		usage = p.MinAmount
	}
	return usage
}

// HasPositiveFloor reports whether a floor price forces billing at zero usage.
func (p *PriceConfiguration) HasPositiveFloor() bool {
	return p.FloorPrice != nil && p.FloorPrice.IsPositive()
}
