// Package domain defines the pricing strategy contract and the registry that
// selects one per price configuration.
package domain

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
)

// Scale is the fixed number of fraction digits carried by every monetary
// amount in the billing pipeline. Amounts are rounded half-up to this scale
// exactly once per computed figure so retried computations reproduce the
// same totals.
const Scale = 5

// Round normalizes an amount to the pipeline's fixed scale.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// Strategy turns (price configuration, usage count) into a monetary amount.
// Implementations are pure and must validate their own configuration shape.
type Strategy interface {
	Name() string
	Calculate(cfg *pricedomain.PriceConfiguration, usage int64) (decimal.Decimal, error)
	Supports(cfg *pricedomain.PriceConfiguration) bool
	Priority() int
	ValidateConfiguration(cfg *pricedomain.PriceConfiguration) []string
}

var ErrNoStrategy = errors.New("no_pricing_strategy")

// Registry holds an ordered list of strategies, sorted once at construction
// by descending priority. Registration order breaks ties.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	ordered := make([]Strategy, len(strategies))
	copy(ordered, strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &Registry{strategies: ordered}
}

// ForConfiguration picks the strategy for a configuration: an explicitly
// named strategy wins when it also supports the configuration, otherwise the
// highest-priority supporting strategy is used.
func (r *Registry) ForConfiguration(cfg *pricedomain.PriceConfiguration) (Strategy, error) {
	if cfg.StrategyName != nil && *cfg.StrategyName != "" {
		for _, strategy := range r.strategies {
			if strategy.Name() == *cfg.StrategyName && strategy.Supports(cfg) {
				return strategy, nil
			}
		}
	}

	for _, strategy := range r.strategies {
		if strategy.Supports(cfg) {
			return strategy, nil
		}
	}

	return nil, ErrNoStrategy
}

// Strategies returns the registry's ordered contents.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}
