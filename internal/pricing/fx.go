package pricing

import (
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
	"github.com/smallbiznis/meterbill/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.registry",
	fx.Provide(NewRegistry),
)

// NewRegistry wires the built-in strategies in one explicit, statically
// constructed list. Supporting strategies are consulted highest priority
// first.
func NewRegistry() *pricingdomain.Registry {
	return pricingdomain.NewRegistry(
		service.NewFlatStrategy(),
		service.NewTieredStrategy(),
	)
}
