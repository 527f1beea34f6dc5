package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nmoreyra/taller3d/internal/domain"
)

type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CheckoutInput struct {
	Items          []CheckoutItem         `json:"items"`
	Address        domain.ShippingAddress `json:"shipping_address"`
	AddressID      *uuid.UUID             `json:"address_id,omitempty"`
	CouponCode     string                 `json:"coupon_code,omitempty"`
	ShippingRateID *uuid.UUID             `json:"shipping_rate_id,omitempty"`
	CustomerID     *uuid.UUID             `json:"-"`
}

type CheckoutResult struct {
	Order     *domain.Order
	SessionID string
	URL       string
}

const orderNumberAttempts = 3

type CheckoutUC struct {
	Products domain.ProductRepo
	Orders   domain.OrderRepo
	Coupons  *CouponUC
	Shipping *ShippingUC
	Gateway  domain.PaymentGateway

	// TaxRate applies to the discounted subtotal, not the gross one.
	TaxRate float64
}

// Checkout runs the whole place-order pipeline: authoritative price fetch,
// stock gate, coupon, shipping, tax, persistence and the hosted payment
// session. Client-supplied prices are never consulted.
func (uc *CheckoutUC) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(&in.Address); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := uc.Products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	// missing and inactive look the same from here: the set is short
	if len(products) != len(ids) {
		return nil, domain.ErrProductsUnavailable
	}
	byID := make(map[uuid.UUID]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, it := range items {
		p := byID[it.ProductID]
		if !p.InStock(it.Quantity) {
			return nil, &domain.OutOfStockError{ProductName: p.Name, Requested: it.Quantity, Available: p.StockQuantity}
		}
	}

	var subtotal int64
	for _, it := range items {
		subtotal += byID[it.ProductID].PriceCents * int64(it.Quantity)
	}

	// An invalid coupon degrades to zero discount instead of killing the
	// checkout. Deliberate tolerance; the customer still gets their order.
	var discount int64
	couponCode := strings.ToUpper(strings.TrimSpace(in.CouponCode))
	if couponCode != "" {
		_, d, err := uc.Coupons.Validate(ctx, couponCode, subtotal)
		if err != nil {
			log.Warn().Err(err).Str("code", couponCode).Msg("coupon ignored at checkout")
			couponCode = ""
		} else {
			discount = d
		}
	}

	rate, err := uc.Shipping.Resolve(ctx, subtotal, in.ShippingRateID)
	if err != nil {
		return nil, err
	}

	tax := taxFor(subtotal-discount, uc.TaxRate)
	total := subtotal - discount + rate.PriceCents + tax

	order := &domain.Order{
		ID:               uuid.New(),
		CustomerID:       in.CustomerID,
		Email:            strings.ToLower(strings.TrimSpace(in.Address.Email)),
		Status:           domain.OrderStatusPending,
		PaymentStatus:    domain.PaymentPending,
		SubtotalCents:    subtotal,
		DiscountCents:    discount,
		ShippingCents:    rate.PriceCents,
		TaxCents:         tax,
		TotalCents:       total,
		ShippingAddress:  in.Address,
		CouponCode:       couponCode,
		ShippingRateName: rate.Name,
	}
	for _, it := range items {
		p := byID[it.ProductID]
		pid := p.ID
		order.Items = append(order.Items, domain.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      &pid,
			ProductName:    p.Name,
			ProductImage:   p.PrimaryImage(),
			SKU:            p.SKU,
			Quantity:       it.Quantity,
			UnitPriceCents: p.PriceCents,
		})
	}

	for attempt := 0; ; attempt++ {
		order.OrderNumber = domain.NewOrderNumber(time.Now())
		err = uc.Orders.Create(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateOrderNumber) && attempt < orderNumberAttempts-1 {
			continue
		}
		return nil, err
	}

	sess, err := uc.Gateway.CreateCheckoutSession(ctx, order)
	if err != nil {
		// Known gap: the order stays pending/unpaid, there is no rollback.
		// A reconciliation pass or the admin picks these up.
		log.Error().Err(err).Str("order", order.OrderNumber).Msg("payment session creation failed after order persist")
		return nil, &domain.ExternalServiceError{Service: "payments", Err: err}
	}
	order.CheckoutSessionID = sess.ID
	if err := uc.Orders.SetPaymentSession(ctx, order.ID, sess.ID); err != nil {
		log.Error().Err(err).Str("order", order.OrderNumber).Str("session", sess.ID).Msg("failed to correlate payment session")
		return nil, err
	}

	return &CheckoutResult{Order: order, SessionID: sess.ID, URL: sess.URL}, nil
}

// normalizeItems merges duplicate product ids and rejects empty or
// non-positive lines.
func normalizeItems(in []CheckoutItem) ([]CheckoutItem, error) {
	if len(in) == 0 {
		return nil, domain.Validation("items", "at least one item is required")
	}
	idx := map[uuid.UUID]int{}
	out := make([]CheckoutItem, 0, len(in))
	for _, it := range in {
		if it.ProductID == uuid.Nil {
			return nil, domain.Validation("items", "item product_id is required")
		}
		if it.Quantity < 1 {
			return nil, domain.Validation("items", "item quantity must be at least 1")
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func validateAddress(a *domain.ShippingAddress) error {
	if !emailRe.MatchString(strings.TrimSpace(a.Email)) {
		return domain.Validation("shipping_address.email", "a valid email is required")
	}
	if strings.TrimSpace(a.FullName) == "" {
		return domain.Validation("shipping_address.full_name", "full name is required")
	}
	if strings.TrimSpace(a.Line1) == "" {
		return domain.Validation("shipping_address.line1", "address line is required")
	}
	if strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.PostalCode) == "" {
		return domain.Validation("shipping_address", "city and postal code are required")
	}
	if a.Country == "" {
		a.Country = "US"
	}
	return nil
}

func taxFor(taxableCents int64, rate float64) int64 {
	if taxableCents <= 0 || rate <= 0 {
		return 0
	}
	return decimal.NewFromInt(taxableCents).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).IntPart()
}
