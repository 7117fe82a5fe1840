package inventory

// CreateItemRequest is the payload for adding a stock item.
type CreateItemRequest struct {
	SKU          string `json:"sku" validate:"required,max=64"`
	Name         string `json:"name" validate:"required,max=200"`
	Description  string `json:"description" validate:"omitempty,max=2000"`
	Quantity     int64  `json:"quantity" validate:"min=0"`
	Unit         string `json:"unit" validate:"omitempty,max=20"`
	ReorderLevel int64  `json:"reorder_level" validate:"min=0"`
}

// AdjustRequest changes quantity on hand by a signed delta.
type AdjustRequest struct {
	Delta   int64  `json:"delta" validate:"required"`
	Reason  string `json:"reason" validate:"required,max=500"`
	Version int64  `json:"version" validate:"required,min=1"`
}
