package service

import (
	"testing"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	"github.com/stretchr/testify/assert"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestFlatStrategy_Calculate(t *testing.T) {
	strategy := NewFlatStrategy()

	cfg := &pricedomain.PriceConfiguration{
		UnitPrice: decimal.RequireFromString("0.70"),
	}

	amount, err := strategy.Calculate(cfg, 200)
	assert.NoError(t, err)
	assert.Equal(t, "140.00000", amount.StringFixed(5))
}

func TestFlatStrategy_RoundsHalfUpAtScaleFive(t *testing.T) {
	strategy := NewFlatStrategy()

	cfg := &pricedomain.PriceConfiguration{
		UnitPrice: decimal.RequireFromString("0.000005"),
	}

	// 3 * 0.000005 = 0.000015 rounds up to 0.00002 at scale 5.
	amount, err := strategy.Calculate(cfg, 3)
	assert.NoError(t, err)
	assert.Equal(t, "0.00002", amount.StringFixed(5))
}

func TestFlatStrategy_ZeroUsage(t *testing.T) {
	strategy := NewFlatStrategy()

	cfg := &pricedomain.PriceConfiguration{
		UnitPrice: decimal.RequireFromString("0.70"),
	}

	amount, err := strategy.Calculate(cfg, 0)
	assert.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestFlatStrategy_CapAndFloor(t *testing.T) {
	strategy := NewFlatStrategy()

	cfg := &pricedomain.PriceConfiguration{
		UnitPrice:  decimal.RequireFromString("1.00"),
		CapPrice:   decimalPtr("50"),
		FloorPrice: decimalPtr("10"),
	}

	capped, err := strategy.Calculate(cfg, 100)
	assert.NoError(t, err)
	assert.Equal(t, "50.00000", capped.StringFixed(5))

	floored, err := strategy.Calculate(cfg, 5)
	assert.NoError(t, err)
	assert.Equal(t, "10.00000", floored.StringFixed(5))

	within, err := strategy.Calculate(cfg, 25)
	assert.NoError(t, err)
	assert.Equal(t, "25.00000", within.StringFixed(5))
}

func TestFlatStrategy_FloorAppliesAtZeroUsage(t *testing.T) {
	strategy := NewFlatStrategy()

	cfg := &pricedomain.PriceConfiguration{
		UnitPrice:  decimal.RequireFromString("1.00"),
		FloorPrice: decimalPtr("3"),
	}

	amount, err := strategy.Calculate(cfg, 0)
	assert.NoError(t, err)
	assert.Equal(t, "3.00000", amount.StringFixed(5))
}

func TestFlatStrategy_ValidateConfiguration(t *testing.T) {
	strategy := NewFlatStrategy()

	valid := &pricedomain.PriceConfiguration{
		UnitPrice: decimal.RequireFromString("0.5"),
	}
	assert.Empty(t, strategy.ValidateConfiguration(valid))

	negative := &pricedomain.PriceConfiguration{
		UnitPrice: decimal.RequireFromString("-1"),
	}
	assert.NotEmpty(t, strategy.ValidateConfiguration(negative))

	inverted := &pricedomain.PriceConfiguration{
		UnitPrice:  decimal.RequireFromString("1"),
		CapPrice:   decimalPtr("5"),
		FloorPrice: decimalPtr("10"),
	}
	assert.NotEmpty(t, strategy.ValidateConfiguration(inverted))
}
