package inventory

import "time"

// Item is a stocked product or material referenced by quote and job lines.
type Item struct {
	ID             int64     `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	QuantityOnHand int64     `json:"quantity_on_hand"`
	Unit           string    `json:"unit"`
	ReorderLevel   int64     `json:"reorder_level"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i Item) LowStock() bool {
	return i.QuantityOnHand <= i.ReorderLevel
}

// Filter narrows inventory listings.
type Filter struct {
	Search   string
	LowStock bool
	Page     int
	PerPage  int
}
