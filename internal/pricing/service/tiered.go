package service

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
)

// TieredStrategy consumes usage band by band, billing each slice at its
// band's rate. Usage beyond the last band's maximum is billed at the last
// band's rate; overflow is a deliberate policy, not an error. Partial-tier
// amounts accumulate unrounded and are rounded once at the final sum.
type TieredStrategy struct{}

func NewTieredStrategy() *TieredStrategy {
	return &TieredStrategy{}
}

func (s *TieredStrategy) Name() string { return "tiered" }

func (s *TieredStrategy) Calculate(cfg *pricedomain.PriceConfiguration, usage int64) (decimal.Decimal, error) {
	tiers := sortedTiers(cfg)
	if len(tiers) == 0 {
		amount := pricingdomain.Round(cfg.UnitPrice.Mul(decimal.NewFromInt(usage)))
		return clampAmount(cfg, amount), nil
	}

	total := decimal.Zero
	remaining := usage

	for _, tier := range tiers {
		if remaining <= 0 {
			break
		}
		span := tier.Max - tier.Min
		take := remaining
		if take > span {
			take = span
		}
		total = total.Add(tier.UnitPrice.Mul(decimal.NewFromInt(take)))
		remaining -= take
	}

	if remaining > 0 {
		last := tiers[len(tiers)-1]
		total = total.Add(last.UnitPrice.Mul(decimal.NewFromInt(remaining)))
	}

	return clampAmount(cfg, pricingdomain.Round(total)), nil
}

func (s *TieredStrategy) Supports(cfg *pricedomain.PriceConfiguration) bool {
	return len(cfg.TierSchedule) > 0
}

func (s *TieredStrategy) Priority() int { return 10 }

func (s *TieredStrategy) ValidateConfiguration(cfg *pricedomain.PriceConfiguration) []string {
	if len(cfg.TierSchedule) == 0 {
		return []string{"tiered strategy requires a non-empty tier schedule"}
	}

	var errs []string
	tiers := sortedTiers(cfg)

	var previousMax int64
	for i, tier := range tiers {
		if tier.UnitPrice.IsNegative() {
			errs = append(errs, fmt.Sprintf("tier %d unit price must be greater than or equal to zero", i))
		}
		if tier.Max <= tier.Min {
			errs = append(errs, fmt.Sprintf("tier %d maximum must be greater than its minimum", i))
		}
		if i > 0 && tier.Min != previousMax {
			errs = append(errs, fmt.Sprintf("tier %d minimum must equal the previous tier's maximum", i))
		}
		previousMax = tier.Max
	}

	return errs
}

func sortedTiers(cfg *pricedomain.PriceConfiguration) []pricedomain.PriceTier {
	tiers := make([]pricedomain.PriceTier, len(cfg.TierSchedule))
	copy(tiers, cfg.TierSchedule)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })
	return tiers
}
