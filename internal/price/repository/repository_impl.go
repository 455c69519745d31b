package repository

import (
	"context"
	"time"

	pricedomain "github.com/smallbiznis/meterbill/internal/price/domain"
	"github.com/smallbiznis/meterbill/pkg/repository"
	"gorm.io/gorm"
)

type priceRepository struct {
	db    *gorm.DB
	store repository.Repository[pricedomain.PriceConfiguration]
}

func NewRepository(db *gorm.DB) pricedomain.Repository {
	return &priceRepository{
		db:    db,
		store: repository.ProvideStore[pricedomain.PriceConfiguration](db),
	}
}

func (r *priceRepository) Get(ctx context.Context, id string) (*pricedomain.PriceConfiguration, error) {
	var cfg pricedomain.PriceConfiguration
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *priceRepository) ListActive(ctx context.Context) ([]*pricedomain.PriceConfiguration, error) {
	return r.store.Find(ctx, &pricedomain.PriceConfiguration{Active: true})
}

func (r *priceRepository) ListBillableAt(ctx context.Context, t time.Time) ([]*pricedomain.PriceConfiguration, error) {
	var configs []*pricedomain.PriceConfiguration
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", t).
		Where("valid_to IS NULL OR valid_to >= ?", t).
		Find(&configs).Error
	return configs, err
}
