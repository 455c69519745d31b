package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/meterbill/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Service is a routing layer over the registered usage providers, consulted
// in descending priority order. Registration order breaks ties.
type Service struct {
	log       *zap.Logger
	providers []usagedomain.Provider
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Providers []usagedomain.Provider `group:"usage.providers"`
}

func NewService(p Params) usagedomain.Service {
	providers := make([]usagedomain.Provider, len(p.Providers))
	copy(providers, p.Providers)
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority() > providers[j].Priority()
	})

	return &Service{
		log:       p.Log.Named("usage.service"),
		providers: providers,
	}
}

// NewAggregator builds a service from an explicit provider list. Used by
// callers that wire providers by hand.
func NewAggregator(log *zap.Logger, providers ...usagedomain.Provider) usagedomain.Service {
	return NewService(Params{Log: log, Providers: providers})
}

func (s *Service) Usage(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (int64, error) {
	provider := s.findProvider(resourceKey)
	if provider == nil {
		return 0, fmt.Errorf("resource key %q: %w", resourceKey, usagedomain.ErrNoUsageSource)
	}
	return provider.Usage(ctx, subscriberID, resourceKey, start, end)
}

func (s *Service) UsageDetail(ctx context.Context, subscriberID snowflake.ID, resourceKey string, start, end time.Time) (datatypes.JSONMap, error) {
	provider := s.findProvider(resourceKey)
	if provider == nil {
		return nil, fmt.Errorf("resource key %q: %w", resourceKey, usagedomain.ErrNoUsageSource)
	}
	return provider.UsageDetail(ctx, subscriberID, resourceKey, start, end)
}

// BatchUsage queries several resource keys best-effort. A failing key is
// captured as a per-key entry instead of aborting the whole batch.
func (s *Service) BatchUsage(ctx context.Context, subscriberID snowflake.ID, resourceKeys []string, start, end time.Time) map[string]usagedomain.BatchEntry {
	result := make(map[string]usagedomain.BatchEntry, len(resourceKeys))

	for _, key := range resourceKeys {
		usage, err := s.Usage(ctx, subscriberID, key, start, end)
		if err != nil {
			s.log.Warn("batch usage query failed",
				zap.String("resource_key", key),
				zap.Error(err),
			)
			result[key] = usagedomain.BatchEntry{Err: err}
			continue
		}
		result[key] = usagedomain.BatchEntry{Usage: usage}
	}

	return result
}

func (s *Service) HasProvider(resourceKey string) bool {
	return s.findProvider(resourceKey) != nil
}

func (s *Service) findProvider(resourceKey string) usagedomain.Provider {
	for _, provider := range s.providers {
		if provider.Supports(resourceKey) {
			return provider
		}
	}
	return nil
}
