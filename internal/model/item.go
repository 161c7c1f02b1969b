package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single inventory record: something bought, later scheduled for
// posting, listed and eventually sold.
type Item struct {
	ID                int64               `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	PurchasePrice     decimal.Decimal     `json:"purchase_price"`
	SellingPrice      decimal.NullDecimal `json:"selling_price"`
	PurchaseDate      Date                `json:"purchase_date"`
	ScheduledPostDate *Date               `json:"scheduled_post_date,omitempty"`
	PostedDate        *Date               `json:"posted_date,omitempty"`
	SoldDate          *Date               `json:"sold_date,omitempty"`
	ImagePath         *string             `json:"-"`
	PurchaseLocation  string              `json:"purchase_location"`
	Category          string              `json:"category"`
	Notes             string              `json:"notes"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Item statuses, derived from which dates are set.
const (
	ItemStatusInventory = "inventory"
	ItemStatusScheduled = "scheduled"
	ItemStatusPosted    = "posted"
	ItemStatusSold      = "sold"
)

// Status returns the lifecycle stage of the item.
func (i *Item) Status() string {
	switch {
	case i.SoldDate != nil:
		return ItemStatusSold
	case i.PostedDate != nil:
		return ItemStatusPosted
	case i.ScheduledPostDate != nil:
		return ItemStatusScheduled
	default:
		return ItemStatusInventory
	}
}

// Profit returns selling minus purchase price for sold items with a known
// selling price.
func (i *Item) Profit() (decimal.Decimal, bool) {
	if i.SoldDate == nil || !i.SellingPrice.Valid {
		return decimal.Zero, false
	}
	return i.SellingPrice.Decimal.Sub(i.PurchasePrice), true
}

// HasImage reports whether the item references a stored image.
func (i *Item) HasImage() bool {
	return i.ImagePath != nil && *i.ImagePath != ""
}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	switch s {
	case ItemStatusInventory, ItemStatusScheduled, ItemStatusPosted, ItemStatusSold:
		return true
	}
	return false
}

// Stats summarises the inventory for the analytics view.
type Stats struct {
	TotalItems     int             `json:"total_items"`
	SoldItems      int             `json:"sold_items"`
	ActiveListings int             `json:"active_listings"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
}
