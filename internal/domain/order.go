package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusConfirmed    OrderStatus = "confirmed"
	OrderStatusProcessing   OrderStatus = "processing"
	OrderStatusPrinting     OrderStatus = "printing"
	OrderStatusQualityCheck OrderStatus = "quality_check"
	OrderStatusReadyToShip  OrderStatus = "ready_to_ship"
	OrderStatusShipped      OrderStatus = "shipped"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusRefunded     OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// statusFlow lists the allowed forward transition for each status. Cancelled
// and refunded are reachable from every pre-shipped state; delivered,
// cancelled and refunded are terminal.
var statusFlow = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing:   {OrderStatusPrinting, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusPrinting:     {OrderStatusQualityCheck, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusQualityCheck: {OrderStatusReadyToShip, OrderStatusPrinting, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusReadyToShip:  {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:      {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:    {},
	OrderStatusCancelled:    {},
	OrderStatusRefunded:     {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	_, ok := statusFlow[s]
	return ok
}

// ShippingAddress is a structured snapshot stored on the order. It must stay
// readable on its own even if the customer's saved address later changes.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type Order struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey"`
	OrderNumber   string        `gorm:"uniqueIndex;size:40;not null"`
	CustomerID    *uuid.UUID    `gorm:"type:uuid;index"`
	Email         string        `gorm:"size:140;index"`
	Status        OrderStatus   `gorm:"type:varchar(30);index;default:'pending'"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(30);index;default:'pending'"`

	SubtotalCents int64 `gorm:"not null;default:0"`
	DiscountCents int64 `gorm:"not null;default:0"`
	ShippingCents int64 `gorm:"not null;default:0"`
	TaxCents      int64 `gorm:"not null;default:0"`
	TotalCents    int64 `gorm:"not null;default:0"`
	RefundedCents int64 `gorm:"not null;default:0"`

	ShippingAddress  ShippingAddress `gorm:"type:jsonb;serializer:json"`
	CouponCode       string          `gorm:"size:40"`
	ShippingRateName string          `gorm:"size:120"`

	CheckoutSessionID string `gorm:"size:140;index"`
	PaymentIntentID   string `gorm:"size:140"`

	TrackingNumber  string `gorm:"size:100"`
	TrackingURL     string `gorm:"size:255"`
	ShippingCarrier string `gorm:"size:60"`
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	AdminNotes      string `gorm:"type:text"`
	Notified        bool   `gorm:"not null;default:false"`

	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingRefundable is what can still be refunded through the gateway.
func (o *Order) RemainingRefundable() int64 {
	return o.TotalCents - o.RefundedCents
}

// OrderItem is an immutable per-line snapshot taken at order time.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"type:uuid;index"`
	ProductID      *uuid.UUID `gorm:"type:uuid;index"`
	ProductName    string     `gorm:"size:180"`
	ProductImage   string     `gorm:"size:255"`
	SKU            string     `gorm:"size:120"`
	Quantity       int        `gorm:"not null"`
	UnitPriceCents int64      `gorm:"not null"`
}

// OrderStatusHistory is the append-only audit trail of status changes.
type OrderStatusHistory struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID   `gorm:"type:uuid;index"`
	Status    OrderStatus `gorm:"type:varchar(30)"`
	ChangedBy string      `gorm:"size:140"`
	Note      string      `gorm:"type:text"`
	CreatedAt time.Time
}

type OrderFilter struct {
	Status        *OrderStatus
	PaymentStatus *PaymentStatus
	Page          int
	PageSize      int
}
