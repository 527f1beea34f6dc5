package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed_amount"
)

type Coupon struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Code             string       `gorm:"uniqueIndex;size:40;not null"`
	DiscountType     DiscountType `gorm:"type:varchar(20);not null"`
	DiscountValue    int64        `gorm:"not null"`
	MinOrderCents    *int64
	MaxDiscountCents *int64
	UsageLimit       *int
	UsageCount       int `gorm:"not null;default:0"`
	StartsAt         *time.Time
	ExpiresAt        *time.Time
	Active           bool `gorm:"default:true;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsableAt checks every eligibility rule except the minimum-purchase one
// against the given instant. Open time bounds are unbounded.
func (c *Coupon) UsableAt(now time.Time) error {
	if !c.Active {
		return &NotEligibleError{Reason: "coupon is not active"}
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return &NotEligibleError{Reason: "coupon is not active yet"}
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return &NotEligibleError{Reason: "coupon has expired"}
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return &NotEligibleError{Reason: "coupon usage limit reached"}
	}
	return nil
}

// MeetsMinimum checks the minimum-purchase rule against a subtotal.
func (c *Coupon) MeetsMinimum(subtotalCents int64) bool {
	return c.MinOrderCents == nil || subtotalCents >= *c.MinOrderCents
}

// DiscountFor computes the discount in cents for a subtotal. Percentage
// discounts round half-up and are clamped to MaxDiscountCents when set.
// The result is always clamped to the subtotal so a total can never go
// negative.
func (c *Coupon) DiscountFor(subtotalCents int64) int64 {
	var discount int64
	switch c.DiscountType {
	case DiscountPercentage:
		discount = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).IntPart()
		if c.MaxDiscountCents != nil && discount > *c.MaxDiscountCents {
			discount = *c.MaxDiscountCents
		}
	case DiscountFixed:
		discount = c.DiscountValue
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount
}
