package domain

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:140;uniqueIndex"`
	Name      string    `gorm:"size:140"`
	Picture   string    `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is a saved customer address. At most one per customer may be the
// default; the repo enforces that by clearing the others first.
type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;index"`
	FullName   string    `gorm:"size:140"`
	Line1      string    `gorm:"size:255"`
	Line2      string    `gorm:"size:255"`
	City       string    `gorm:"size:120"`
	State      string    `gorm:"size:120"`
	PostalCode string    `gorm:"size:20"`
	Country    string    `gorm:"size:2;default:'US'"`
	Phone      string    `gorm:"size:50"`
	IsDefault  bool      `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Snapshot converts a saved address into the order-embedded form.
func (a *Address) Snapshot(email string) ShippingAddress {
	return ShippingAddress{
		FullName:   a.FullName,
		Email:      email,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
