package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type ShippingRateRepo struct{ db *gorm.DB }

func NewShippingRateRepo(db *gorm.DB) *ShippingRateRepo { return &ShippingRateRepo{db: db} }

func (r *ShippingRateRepo) ListEligible(ctx context.Context, subtotalCents int64) ([]domain.ShippingRate, error) {
	var list []domain.ShippingRate
	if err := r.db.WithContext(ctx).
		Where("active = true AND min_order_cents <= ? AND (max_order_cents IS NULL OR max_order_cents >= ?)",
			subtotalCents, subtotalCents).
		Order("price_cents asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ShippingRateRepo) List(ctx context.Context) ([]domain.ShippingRate, error) {
	var list []domain.ShippingRate
	if err := r.db.WithContext(ctx).Order("min_order_cents asc, price_cents asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ShippingRateRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.ShippingRate, error) {
	var rate domain.ShippingRate
	if err := r.db.WithContext(ctx).First(&rate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rate, nil
}

func (r *ShippingRateRepo) Save(ctx context.Context, rate *domain.ShippingRate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(rate).Error
}

func (r *ShippingRateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.ShippingRate{}, "id = ?", id).Error
}
