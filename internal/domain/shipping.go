package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShippingRate struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"size:120;not null"`
	Description      string    `gorm:"type:text"`
	PriceCents       int64     `gorm:"not null;default:0"`
	MinOrderCents    int64     `gorm:"not null;default:0"`
	MaxOrderCents    *int64
	EstimatedDaysMin int  `gorm:"default:0"`
	EstimatedDaysMax int  `gorm:"default:0"`
	Active           bool `gorm:"default:true;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EligibleFor reports whether this rate may be offered for a subtotal.
func (r *ShippingRate) EligibleFor(subtotalCents int64) bool {
	if !r.Active {
		return false
	}
	if subtotalCents < r.MinOrderCents {
		return false
	}
	if r.MaxOrderCents != nil && subtotalCents > *r.MaxOrderCents {
		return false
	}
	return true
}

// ShipmentLabel is the result of buying a label from the carrier API.
type ShipmentLabel struct {
	TrackingNumber string
	TrackingURL    string
	Carrier        string
	LabelURL       string
}

// TrackingStatus is a carrier-side snapshot of a shipment in transit.
type TrackingStatus struct {
	TrackingNumber string
	Status         string
	Detail         string
	UpdatedAt      time.Time
}
