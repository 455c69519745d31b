package service

import (
	"context"
	"fmt"
	"time"

	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	pricingdomain "github.com/smallbiznis/meterbill/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log        *zap.Logger
	repo       pricedomain.Repository
	strategies *pricingdomain.Registry
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       pricedomain.Repository
	Strategies *pricingdomain.Registry
}

func NewService(p Params) pricedomain.Service {
	return &Service{
		log:        p.Log.Named("price.service"),
		repo:       p.Repo,
		strategies: p.Strategies,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*pricedomain.PriceConfiguration, error) {
	cfg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, pricedomain.ErrPriceConfigurationNotFound
	}
	return cfg, nil
}

func (s *Service) ListBillableAt(ctx context.Context, t time.Time) ([]*pricedomain.PriceConfiguration, error) {
	return s.repo.ListBillableAt(ctx, t)
}

// Validate checks the structural invariants an operator-authored configuration
// must hold before it can participate in a sweep, then defers to the selected
// pricing strategy for strategy-specific rules.
func (s *Service) Validate(ctx context.Context, cfg *pricedomain.PriceConfiguration) []string {
	var errs []string

	if !cfg.Cycle.Valid() {
		errs = append(errs, fmt.Sprintf("unknown fee cycle %q", cfg.Cycle))
	}
	if cfg.CurrencyCode == "" {
		errs = append(errs, "currency code is required")
	}
	if cfg.ResourceKey == "" {
		errs = append(errs, "resource key is required")
	}
	if cfg.UnitPrice.IsNegative() {
		errs = append(errs, "unit price must be greater than or equal to zero")
	}
	if cfg.CapPrice != nil && cfg.FloorPrice != nil && cfg.CapPrice.LessThan(*cfg.FloorPrice) {
		errs = append(errs, "cap price must be greater than or equal to floor price")
	}
	if cfg.FreeQuota != nil && *cfg.FreeQuota < 0 {
		errs = append(errs, "free quota must be greater than or equal to zero")
	}
	if cfg.MinAmount < 0 {
		errs = append(errs, "minimum billable amount must be greater than or equal to zero")
	}
	if cfg.MaxAmount != nil && *cfg.MaxAmount < cfg.MinAmount {
		errs = append(errs, "maximum billable amount must be greater than or equal to the minimum")
	}
	if cfg.ValidFrom != nil && cfg.ValidTo != nil && cfg.ValidTo.Before(*cfg.ValidFrom) {
		errs = append(errs, "validity window end must not precede its start")
	}

	strategy, err := s.strategies.ForConfiguration(cfg)
	if err != nil {
		errs = append(errs, fmt.Sprintf("no pricing strategy supports configuration %q", cfg.Title))
		return errs
	}

	return append(errs, strategy.ValidateConfiguration(cfg)...)
}
