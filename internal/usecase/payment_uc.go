package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nmoreyra/taller3d/internal/domain"
)

// PaymentUC reacts to gateway webhook events. Confirmation is the point where
// stock is actually consumed and coupon uses are counted, both through
// atomic conditional updates so concurrent confirmations cannot oversell.
type PaymentUC struct {
	Orders   domain.OrderRepo
	Products domain.ProductRepo
	Coupons  domain.CouponRepo
	Mailer   domain.Mailer
}

// ConfirmCheckout marks the order behind a checkout session as paid. It is
// idempotent: a replayed webhook for an already-paid order is a no-op.
func (uc *PaymentUC) ConfirmCheckout(ctx context.Context, sessionID, paymentIntentID string) error {
	o, err := uc.Orders.FindBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return nil
	}

	o.PaymentStatus = domain.PaymentPaid
	o.PaymentIntentID = paymentIntentID
	if o.Status == domain.OrderStatusPending {
		o.Status = domain.OrderStatusConfirmed
	}
	notify := !o.Notified
	o.Notified = true
	if err := uc.Orders.Save(ctx, o); err != nil {
		return err
	}
	_ = uc.Orders.AppendHistory(ctx, &domain.OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    o.Status,
		ChangedBy: "payment-webhook",
		Note:      "payment confirmed",
	})

	uc.consumeStock(ctx, o)

	if o.CouponCode != "" {
		ok, err := uc.Coupons.ConsumeUsage(ctx, o.CouponCode)
		if err != nil {
			log.Error().Err(err).Str("code", o.CouponCode).Msg("coupon usage increment failed")
		} else if !ok {
			// limit raced to zero between checkout and payment; the
			// discount stands, we just log the overshoot
			log.Warn().Str("code", o.CouponCode).Str("order", o.OrderNumber).Msg("coupon limit exceeded at confirmation")
		}
	}

	if notify && uc.Mailer != nil {
		go func(o domain.Order) {
			if err := uc.Mailer.OrderConfirmation(&o); err != nil {
				log.Warn().Err(err).Str("order", o.OrderNumber).Msg("order confirmation email failed")
			}
		}(*o)
	}
	return nil
}

// FailCheckout records a failed or expired payment session.
func (uc *PaymentUC) FailCheckout(ctx context.Context, sessionID string) error {
	o, err := uc.Orders.FindBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return nil
	}
	o.PaymentStatus = domain.PaymentFailed
	return uc.Orders.Save(ctx, o)
}

// consumeStock decrements tracked inventory per line with a conditional
// UPDATE. Zero rows affected means a concurrent checkout won the last units;
// that is an oversell discovered at confirmation time, flagged for the admin.
func (uc *PaymentUC) consumeStock(ctx context.Context, o *domain.Order) {
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		ok, err := uc.Products.DecrementStock(ctx, *it.ProductID, it.Quantity)
		if err != nil {
			log.Error().Err(err).Str("order", o.OrderNumber).Str("product", it.ProductName).Msg("stock decrement failed")
			continue
		}
		if !ok {
			log.Warn().Str("order", o.OrderNumber).Str("product", it.ProductName).Int("qty", it.Quantity).
				Msg("stock oversold at payment confirmation")
		}
	}
}
