package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreyra/taller3d/internal/domain"
)

func TestCouponValidate(t *testing.T) {
	min := int64(5000)
	expired := time.Now().Add(-time.Hour)
	repo := newFakeCoupons(
		&domain.Coupon{ID: uuid.New(), Code: "SAVE10", Active: true,
			DiscountType: domain.DiscountPercentage, DiscountValue: 10},
		&domain.Coupon{ID: uuid.New(), Code: "BIG20", Active: true,
			DiscountType: domain.DiscountPercentage, DiscountValue: 20, MinOrderCents: &min},
		&domain.Coupon{ID: uuid.New(), Code: "OLD", Active: true,
			DiscountType: domain.DiscountFixed, DiscountValue: 500, ExpiresAt: &expired},
	)
	uc := &CouponUC{Coupons: repo}
	ctx := context.Background()

	c, discount, err := uc.Validate(ctx, "save10", 10000)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.Code)
	assert.Equal(t, int64(1000), discount)

	_, _, err = uc.Validate(ctx, "  BIG20 ", 4999)
	var nErr *domain.NotEligibleError
	require.ErrorAs(t, err, &nErr)
	assert.Contains(t, nErr.Reason, "minimum")

	_, discount, err = uc.Validate(ctx, "BIG20", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), discount)

	_, _, err = uc.Validate(ctx, "OLD", 10000)
	require.ErrorAs(t, err, &nErr)

	_, _, err = uc.Validate(ctx, "MISSING", 10000)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = uc.Validate(ctx, "", 10000)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestValidateDoesNotConsumeUsage(t *testing.T) {
	limit := 5
	repo := newFakeCoupons(&domain.Coupon{
		ID: uuid.New(), Code: "LIMITED", Active: true,
		DiscountType: domain.DiscountFixed, DiscountValue: 100,
		UsageLimit: &limit, UsageCount: 0,
	})
	uc := &CouponUC{Coupons: repo}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, err := uc.Validate(ctx, "LIMITED", 1000)
		require.NoError(t, err)
	}
	c, _ := repo.FindByCode(ctx, "LIMITED")
	assert.Equal(t, 0, c.UsageCount)
}
