package entities

import (
	"time"
)

// Product is a furniture catalog row as returned by the remote catalog
type Product struct {
	ID              string    `json:"id" db:"id" validate:"required"`
	SKU             string    `json:"sku" db:"sku"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Brand           string    `json:"brand" db:"brand"`
	FurnitureType   string    `json:"furniture_type" db:"furniture_type"`
	RoomType        string    `json:"room_type" db:"room_type"`
	Material        string    `json:"material" db:"material"`
	StyleType       string    `json:"style_type" db:"style_type"`
	CurrentPrice    *float64  `json:"current_price" db:"current_price" validate:"omitempty,gte=0"`
	RegularPrice    *float64  `json:"regular_price" db:"regular_price" validate:"omitempty,gte=0"`
	DiscountPercent *float64  `json:"discount_percent" db:"discount_percent"`
	NewProduct      bool      `json:"new_product" db:"new_product"`
	OnClearance     bool      `json:"on_clearance" db:"on_clearance"`
	ImageURL        string    `json:"img_src_url" db:"img_src_url"`
	NavigateURL     string    `json:"navigate_url" db:"navigate_url"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Price returns the current price, treating a missing price as 0
func (p *Product) Price() float64 {
	if p.CurrentPrice == nil {
		return 0
	}
	return *p.CurrentPrice
}

// EffectiveDiscountPercent derives the discount from regular and current
// price. Products without a positive regular price have no discount.
func (p *Product) EffectiveDiscountPercent() float64 {
	if p.RegularPrice == nil || *p.RegularPrice <= 0 {
		return 0
	}
	regular := *p.RegularPrice
	return (regular - p.Price()) / regular * 100
}

// FloatPtr returns a pointer to v
func FloatPtr(v float64) *float64 {
	return &v
}
