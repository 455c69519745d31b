package service

import (
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
)

// FlatStrategy bills unit price times usage. It is the default strategy and
// supports every configuration.
type FlatStrategy struct{}

func NewFlatStrategy() *FlatStrategy {
	return &FlatStrategy{}
}

func (s *FlatStrategy) Name() string { return "flat" }

func (s *FlatStrategy) Calculate(cfg *pricedomain.PriceConfiguration, usage int64) (decimal.Decimal, error) {
	amount := pricingdomain.Round(cfg.UnitPrice.Mul(decimal.NewFromInt(usage)))
	return clampAmount(cfg, amount), nil
}

func (s *FlatStrategy) Supports(cfg *pricedomain.PriceConfiguration) bool {
	return true
}

func (s *FlatStrategy) Priority() int { return 0 }

func (s *FlatStrategy) ValidateConfiguration(cfg *pricedomain.PriceConfiguration) []string {
	var errs []string

	if cfg.UnitPrice.IsNegative() {
		errs = append(errs, "unit price must be greater than or equal to zero")
	}
	if cfg.CapPrice != nil && !cfg.CapPrice.IsPositive() {
		errs = append(errs, "cap price must be greater than zero")
	}
	if cfg.FloorPrice != nil && cfg.FloorPrice.IsNegative() {
		errs = append(errs, "floor price must be greater than or equal to zero")
	}
	if cfg.CapPrice != nil && cfg.FloorPrice != nil && cfg.CapPrice.LessThan(*cfg.FloorPrice) {
		errs = append(errs, "cap price must be greater than or equal to floor price")
	}

	return errs
}

// clampAmount applies the cap then the floor. The two outcomes are mutually
// exclusive per invocation as long as cap >= floor.
func clampAmount(cfg *pricedomain.PriceConfiguration, amount decimal.Decimal) decimal.Decimal {
	if cfg.CapPrice != nil && amount.GreaterThan(*cfg.CapPrice) {
		return *cfg.CapPrice
	}
	if cfg.FloorPrice != nil && amount.LessThan(*cfg.FloorPrice) {
		return *cfg.FloorPrice
	}
	return amount
}
