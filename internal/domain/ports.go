package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProductRepo interface {
	Save(ctx context.Context, p *Product) error
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// FindActiveByIDs returns only active products; callers compare the
	// result size against the requested distinct ids.
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	AddImages(ctx context.Context, productID uuid.UUID, imgs []ProductImage) error
	ClearImages(ctx context.Context, productID uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// DecrementStock conditionally subtracts qty for a tracked product.
	// Returns OutOfStockError-compatible failure as rows affected == 0.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type CategoryRepo interface {
	List(ctx context.Context, includeInactive bool) ([]Category, error)
	FindBySlug(ctx context.Context, slug string) (*Category, error)
	Save(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CouponRepo interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Save(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ConsumeUsage atomically increments usage_count while the usage limit
	// still allows it. Returns false when the limit was already reached.
	ConsumeUsage(ctx context.Context, code string) (bool, error)
}

type ShippingRateRepo interface {
	ListEligible(ctx context.Context, subtotalCents int64) ([]ShippingRate, error)
	List(ctx context.Context) ([]ShippingRate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ShippingRate, error)
	Save(ctx context.Context, r *ShippingRate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrderRepo interface {
	// Create persists the order row first and its items second, in one
	// transaction. Returns ErrDuplicateOrderNumber on a number collision.
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	FindBySession(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context, f OrderFilter) ([]Order, int64, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	// ListInRange selects orders created in the half-open window [from, to).
	ListInRange(ctx context.Context, from, to time.Time) ([]Order, error)
	SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
	AppendHistory(ctx context.Context, h *OrderStatusHistory) error
	History(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error)
}

type CustomerRepo interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
}

type AddressRepo interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Address, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Address, error)
	Save(ctx context.Context, a *Address) error
	Delete(ctx context.Context, id uuid.UUID) error
	// SetDefault clears every other default for the customer and marks the
	// given address, all in one transaction.
	SetDefault(ctx context.Context, customerID, addressID uuid.UUID) error
}

// CheckoutSession is the hosted-payment-page handle returned by the gateway.
type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, o *Order) (*CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string, amountCents int64, reason string) error
}

type ShipmentCarrier interface {
	CreateLabel(ctx context.Context, o *Order) (*ShipmentLabel, error)
	Track(ctx context.Context, trackingNumber string) (*TrackingStatus, error)
}

type Mailer interface {
	OrderConfirmation(o *Order) error
	ShippingNotification(o *Order) error
	RefundNotification(o *Order, amountCents int64, reason string) error
}
