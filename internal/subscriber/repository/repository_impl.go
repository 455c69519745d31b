package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	subscriberdomain "github.com/smallbiznis/meterbill/internal/subscriber/domain"
	"github.com/smallbiznis/meterbill/pkg/repository"
	"gorm.io/gorm"
)

type subscriberRepository struct {
	db    *gorm.DB
	store repository.Repository[subscriberdomain.Subscriber]
}

func NewRepository(db *gorm.DB) subscriberdomain.Repository {
	return &subscriberRepository{
		db:    db,
		store: repository.ProvideStore[subscriberdomain.Subscriber](db),
	}
}

func (r *subscriberRepository) Get(ctx context.Context, id snowflake.ID) (*subscriberdomain.Subscriber, error) {
	return r.store.FindOne(ctx, &subscriberdomain.Subscriber{ID: id})
}

// ListByRoles filters in process because role arrays are stored as JSON and
// the engine runs against several dialects. Billable populations are scoped
// per configuration, so the active set stays small.
func (r *subscriberRepository) ListByRoles(ctx context.Context, roles []string) ([]*subscriberdomain.Subscriber, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	active, err := r.store.Find(ctx, &subscriberdomain.Subscriber{Active: true})
	if err != nil {
		return nil, err
	}

	return lo.Filter(active, func(s *subscriberdomain.Subscriber, _ int) bool {
		return len(lo.Intersect(roles, []string(s.Roles))) > 0
	}), nil
}
