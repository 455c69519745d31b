package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	"github.com/stretchr/testify/assert"
)

type stubStrategy struct {
	name     string
	priority int
	supports bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Calculate(cfg *pricedomain.PriceConfiguration, usage int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubStrategy) Supports(cfg *pricedomain.PriceConfiguration) bool { return s.supports }

func (s *stubStrategy) Priority() int { return s.priority }

func (s *stubStrategy) ValidateConfiguration(cfg *pricedomain.PriceConfiguration) []string {
	return nil
}

func TestRegistry_HighestPriorityWins(t *testing.T) {
	low := &stubStrategy{name: "low", priority: 0, supports: true}
	high := &stubStrategy{name: "high", priority: 10, supports: true}

	registry := NewRegistry(low, high)

	picked, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{})
	assert.NoError(t, err)
	assert.Equal(t, "high", picked.Name())
}

func TestRegistry_SkipsNonSupporting(t *testing.T) {
	low := &stubStrategy{name: "low", priority: 0, supports: true}
	high := &stubStrategy{name: "high", priority: 10, supports: false}

	registry := NewRegistry(low, high)

	picked, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{})
	assert.NoError(t, err)
	assert.Equal(t, "low", picked.Name())
}

func TestRegistry_NamedStrategyWins(t *testing.T) {
	low := &stubStrategy{name: "low", priority: 0, supports: true}
	high := &stubStrategy{name: "high", priority: 10, supports: true}

	registry := NewRegistry(low, high)

	name := "low"
	picked, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{StrategyName: &name})
	assert.NoError(t, err)
	assert.Equal(t, "low", picked.Name())
}

func TestRegistry_NamedButUnsupportingFallsBack(t *testing.T) {
	flat := &stubStrategy{name: "flat", priority: 0, supports: true}
	tiered := &stubStrategy{name: "tiered", priority: 10, supports: false}

	registry := NewRegistry(flat, tiered)

	name := "tiered"
	picked, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{StrategyName: &name})
	assert.NoError(t, err)
	assert.Equal(t, "flat", picked.Name())
}

func TestRegistry_NoSupportingStrategy(t *testing.T) {
	registry := NewRegistry(&stubStrategy{name: "none", supports: false})

	_, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{})
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestRegistry_StableOrderOnEqualPriority(t *testing.T) {
	first := &stubStrategy{name: "first", priority: 5, supports: true}
	second := &stubStrategy{name: "second", priority: 5, supports: true}

	registry := NewRegistry(first, second)

	picked, err := registry.ForConfiguration(&pricedomain.PriceConfiguration{})
	assert.NoError(t, err)
	assert.Equal(t, "first", picked.Name())
}
