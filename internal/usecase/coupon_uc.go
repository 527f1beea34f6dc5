package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type CouponUC struct {
	Coupons domain.CouponRepo
}

// Validate looks up a code and computes its discount for a subtotal. It does
// not consume a use: usage_count only moves when an order is confirmed as
// paid, so abandoned carts never burn limited coupons.
func (uc *CouponUC) Validate(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, 0, domain.Validation("code", "coupon code is required")
	}
	c, err := uc.Coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if err := c.UsableAt(time.Now()); err != nil {
		return nil, 0, err
	}
	if !c.MeetsMinimum(subtotalCents) {
		return nil, 0, &domain.NotEligibleError{Reason: "order subtotal is below the coupon minimum"}
	}
	return c, c.DiscountFor(subtotalCents), nil
}
