package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/smallbiznis/meterbill/internal/bill/domain"
	"github.com/smallbiznis/meterbill/pkg/db/option"
	"github.com/smallbiznis/meterbill/pkg/repository"
	"gorm.io/gorm"
)

type billRepository struct {
	db    *gorm.DB
	store repository.Repository[billdomain.Bill]
}

func NewRepository(db *gorm.DB) billdomain.Repository {
	return &billRepository{
		db:    db,
		store: repository.ProvideStore[billdomain.Bill](db),
	}
}

func (r *billRepository) Create(ctx context.Context, bill *billdomain.Bill) error {
	return r.store.Create(ctx, bill)
}

func (r *billRepository) Save(ctx context.Context, bill *billdomain.Bill) error {
	return r.db.WithContext(ctx).Save(bill).Error
}

func (r *billRepository) Get(ctx context.Context, id snowflake.ID) (*billdomain.Bill, error) {
	var bill billdomain.Bill
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *billRepository) ExistsBill(ctx context.Context, subscriberID, priceConfigurationID snowflake.ID, periodStart, periodEnd time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&billdomain.Bill{}).
		Where("subscriber_id = ? AND price_configuration_id = ?", subscriberID, priceConfigurationID).
		Where("period_start = ? AND period_end = ?", periodStart, periodEnd).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *billRepository) FindPending(ctx context.Context, limit int) ([]*billdomain.Bill, error) {
	return r.store.Find(ctx,
		&billdomain.Bill{Status: billdomain.BillStatusPending},
		option.WithOrder("created_at ASC"),
		option.WithLimit(limit),
	)
}

func (r *billRepository) FindRetryable(ctx context.Context, failedBefore time.Time, limit int) ([]*billdomain.Bill, error) {
	return r.store.Find(ctx,
		&billdomain.Bill{Status: billdomain.BillStatusFailed},
		option.WithCondition("updated_at < ?", failedBefore),
		option.WithOrder("updated_at ASC"),
		option.WithLimit(limit),
	)
}
