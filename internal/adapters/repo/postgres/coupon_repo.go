package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type CouponRepo struct{ db *gorm.DB }

func NewCouponRepo(db *gorm.DB) *CouponRepo { return &CouponRepo{db: db} }

func (r *CouponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := r.db.WithContext(ctx).First(&c, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepo) List(ctx context.Context) ([]domain.Coupon, error) {
	var list []domain.Coupon
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *CouponRepo) Save(ctx context.Context, c *domain.Coupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *CouponRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Coupon{}, "id = ?", id).Error
}

// ConsumeUsage is a guarded increment: it only fires while the usage limit
// still allows another redemption, so concurrent confirmations cannot push
// usage_count past usage_limit.
func (r *CouponRepo) ConsumeUsage(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	res := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("code = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", code).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
