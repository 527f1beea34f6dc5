package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type OrderUC struct {
	Orders  domain.OrderRepo
	Mailer  domain.Mailer
	Carrier domain.ShipmentCarrier
	Gateway domain.PaymentGateway
}

// OrderUpdate is the admin's partial mutation: only non-nil fields apply.
type OrderUpdate struct {
	Status          *domain.OrderStatus
	TrackingNumber  *string
	TrackingURL     *string
	ShippingCarrier *string
	AdminNotes      *string
	Note            string
}

// Update applies an admin mutation. Every status change is validated against
// the state machine and appends a history row; entering shipped stamps
// shipped_at and emails the customer, entering delivered stamps delivered_at.
func (uc *OrderUC) Update(ctx context.Context, id uuid.UUID, upd OrderUpdate, changedBy string) (*domain.Order, error) {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.TrackingNumber != nil {
		o.TrackingNumber = *upd.TrackingNumber
	}
	if upd.TrackingURL != nil {
		o.TrackingURL = *upd.TrackingURL
	}
	if upd.ShippingCarrier != nil {
		o.ShippingCarrier = *upd.ShippingCarrier
	}
	if upd.AdminNotes != nil {
		o.AdminNotes = *upd.AdminNotes
	}

	statusChanged := false
	if upd.Status != nil && *upd.Status != o.Status {
		next := *upd.Status
		if !domain.ValidStatus(next) {
			return nil, domain.Validation("status", "unknown order status")
		}
		if !domain.CanTransition(o.Status, next) {
			return nil, &domain.InvalidTransitionError{From: o.Status, To: next}
		}
		o.Status = next
		statusChanged = true
		now := time.Now()
		switch next {
		case domain.OrderStatusShipped:
			o.ShippedAt = &now
		case domain.OrderStatusDelivered:
			o.DeliveredAt = &now
		}
	}

	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	if statusChanged {
		h := &domain.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Status:    o.Status,
			ChangedBy: changedBy,
			Note:      upd.Note,
		}
		if err := uc.Orders.AppendHistory(ctx, h); err != nil {
			log.Error().Err(err).Str("order", o.OrderNumber).Msg("append status history")
		}
		if o.Status == domain.OrderStatusShipped && uc.Mailer != nil {
			go func(o domain.Order) {
				if err := uc.Mailer.ShippingNotification(&o); err != nil {
					log.Warn().Err(err).Str("order", o.OrderNumber).Msg("shipping notification failed")
				}
			}(*o)
		}
	}
	return o, nil
}

// Track serves the unauthenticated tracking page: the order number and the
// email must both match.
func (uc *OrderUC) Track(ctx context.Context, number, email string) (*domain.Order, []domain.OrderStatusHistory, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	email = strings.ToLower(strings.TrimSpace(email))
	if number == "" || email == "" {
		return nil, nil, domain.Validation("order_number", "order number and email are required")
	}
	o, err := uc.Orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	if !strings.EqualFold(o.Email, email) {
		// do not reveal whether the number exists
		return nil, nil, domain.ErrNotFound
	}
	hist, err := uc.Orders.History(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, hist, nil
}

// Refund issues a partial or full refund through the gateway. The amount is
// validated before the gateway is ever called.
func (uc *OrderUC) Refund(ctx context.Context, id uuid.UUID, amountCents int64, reason, changedBy string) (*domain.Order, error) {
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != domain.PaymentPaid && o.PaymentStatus != domain.PaymentPartiallyRefunded {
		return nil, &domain.NotEligibleError{Reason: "order payment is not refundable in its current state"}
	}
	if amountCents <= 0 {
		return nil, domain.Validation("amount", "refund amount must be positive")
	}
	if amountCents > o.RemainingRefundable() {
		return nil, domain.Validation("amount", "refund amount exceeds the remaining refundable total")
	}
	if o.PaymentIntentID == "" {
		return nil, &domain.NotEligibleError{Reason: "order has no captured payment to refund"}
	}

	if err := uc.Gateway.Refund(ctx, o.PaymentIntentID, amountCents, reason); err != nil {
		// admins see the gateway's own message
		return nil, &domain.ExternalServiceError{Service: "payments", Err: err}
	}

	o.RefundedCents += amountCents
	if o.RefundedCents >= o.TotalCents {
		o.PaymentStatus = domain.PaymentRefunded
	} else {
		o.PaymentStatus = domain.PaymentPartiallyRefunded
	}
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	_ = uc.Orders.AppendHistory(ctx, &domain.OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    o.Status,
		ChangedBy: changedBy,
		Note:      "refund issued: " + reason,
	})
	if uc.Mailer != nil {
		go func(o domain.Order, amount int64, reason string) {
			if err := uc.Mailer.RefundNotification(&o, amount, reason); err != nil {
				log.Warn().Err(err).Str("order", o.OrderNumber).Msg("refund notification failed")
			}
		}(*o, amountCents, reason)
	}
	return o, nil
}

// CarrierStatus asks the carrier for the live state of an order's shipment.
func (uc *OrderUC) CarrierStatus(ctx context.Context, id uuid.UUID) (*domain.TrackingStatus, error) {
	if uc.Carrier == nil {
		return nil, &domain.NotEligibleError{Reason: "carrier integration is not configured"}
	}
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.TrackingNumber == "" {
		return nil, &domain.NotEligibleError{Reason: "order has no tracking number"}
	}
	st, err := uc.Carrier.Track(ctx, o.TrackingNumber)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "carrier", Err: err}
	}
	return st, nil
}

// BuyLabel purchases a shipping label from the carrier for an order that is
// ready to ship and stores the tracking fields.
func (uc *OrderUC) BuyLabel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if uc.Carrier == nil {
		return nil, &domain.NotEligibleError{Reason: "carrier integration is not configured"}
	}
	o, err := uc.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusReadyToShip {
		return nil, &domain.NotEligibleError{Reason: "order is not ready to ship"}
	}
	label, err := uc.Carrier.CreateLabel(ctx, o)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "carrier", Err: err}
	}
	o.TrackingNumber = label.TrackingNumber
	o.TrackingURL = label.TrackingURL
	o.ShippingCarrier = label.Carrier
	if err := uc.Orders.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
