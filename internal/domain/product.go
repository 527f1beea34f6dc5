package domain

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Slug                string     `gorm:"uniqueIndex;size:140"`
	Name                string     `gorm:"size:180"`
	ShortDesc           string     `gorm:"type:text"`
	Description         string     `gorm:"type:text"`
	PriceCents          int64      `gorm:"not null;default:0"`
	CompareAtPriceCents *int64
	CategoryID          *uuid.UUID `gorm:"type:uuid;index"`
	SKU                 string     `gorm:"size:120;index"`
	Badge               string     `gorm:"size:60"`
	Material            string     `gorm:"size:60"`
	Color               string     `gorm:"size:60"`
	WeightGrams         int        `gorm:"default:0"`
	PrintTimeHours      float64    `gorm:"type:decimal(6,2);default:0"`
	StockQuantity       int        `gorm:"default:0"`
	TrackInventory      bool       `gorm:"default:true"`
	Active              bool       `gorm:"default:true;index"`
	Featured            bool       `gorm:"default:false;index"`
	Images              []ProductImage
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OnSale reports whether the compare-at price makes this a sale item. A
// compare-at price at or below the current price does not count.
func (p *Product) OnSale() bool {
	return p.CompareAtPriceCents != nil && *p.CompareAtPriceCents > p.PriceCents
}

// PrimaryImage returns the URL of the first image, or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// InStock reports purchasability for a given quantity. Products that do not
// track inventory are always purchasable.
func (p *Product) InStock(qty int) bool {
	if !p.TrackInventory {
		return true
	}
	return p.StockQuantity >= qty
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;index"`
	URL       string    `gorm:"size:255"`
	Alt       string    `gorm:"size:140"`
	Position  int       `gorm:"default:0"`
	CreatedAt time.Time
}

type Category struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug         string    `gorm:"uniqueIndex;size:140"`
	Name         string    `gorm:"size:140"`
	Description  string    `gorm:"type:text"`
	ImageURL     string    `gorm:"size:255"`
	DisplayOrder int       `gorm:"default:0"`
	Active       bool      `gorm:"default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProductFilter struct {
	Category        string
	Query           string
	Featured        *bool
	IncludeInactive bool
	Sort            string
	Page            int
	PageSize        int
}
