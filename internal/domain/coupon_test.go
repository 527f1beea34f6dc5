package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestCouponUsableAt(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 10

	tests := []struct {
		name   string
		coupon Coupon
		reason string
	}{
		{"active no bounds", Coupon{Active: true}, ""},
		{"inactive", Coupon{Active: false}, "coupon is not active"},
		{"not started", Coupon{Active: true, StartsAt: &future}, "coupon is not active yet"},
		{"expired", Coupon{Active: true, ExpiresAt: &past}, "coupon has expired"},
		{"within window", Coupon{Active: true, StartsAt: &past, ExpiresAt: &future}, ""},
		{"limit reached", Coupon{Active: true, UsageLimit: &limit, UsageCount: 10}, "coupon usage limit reached"},
		{"limit open", Coupon{Active: true, UsageLimit: &limit, UsageCount: 9}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.UsableAt(now)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var ne *NotEligibleError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.reason, ne.Reason)
		})
	}
}

func TestCouponDiscountFor(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		want     int64
	}{
		{"ten percent", Coupon{DiscountType: DiscountPercentage, DiscountValue: 10}, 10000, 1000},
		{"percentage rounds half up", Coupon{DiscountType: DiscountPercentage, DiscountValue: 15}, 1050, 158},
		{"percentage capped", Coupon{DiscountType: DiscountPercentage, DiscountValue: 50, MaxDiscountCents: i64(2000)}, 10000, 2000},
		{"fixed", Coupon{DiscountType: DiscountFixed, DiscountValue: 500}, 10000, 500},
		{"fixed clamped to subtotal", Coupon{DiscountType: DiscountFixed, DiscountValue: 5000}, 3000, 3000},
		{"negative value ignored", Coupon{DiscountType: DiscountFixed, DiscountValue: -100}, 3000, 0},
		{"hundred percent", Coupon{DiscountType: DiscountPercentage, DiscountValue: 100}, 4999, 4999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.DiscountFor(tt.subtotal))
		})
	}
}

func TestCouponMeetsMinimum(t *testing.T) {
	c := Coupon{MinOrderCents: i64(5000)}
	assert.False(t, c.MeetsMinimum(4999))
	assert.True(t, c.MeetsMinimum(5000))
	assert.True(t, (&Coupon{}).MeetsMinimum(1))
}
