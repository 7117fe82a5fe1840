package quotes

// ItemInput is one requested quote line.
type ItemInput struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    int64   `json:"quantity" validate:"required,min=1"`
	UnitPrice   float64 `json:"unit_price" validate:"min=0"`
	ProductID   *int64  `json:"product_id,omitempty"`
}

// CreateQuoteRequest is the payload for creating a quote.
type CreateQuoteRequest struct {
	CustomerID  int64       `json:"customer_id" validate:"required,min=1"`
	EnquiryID   *int64      `json:"enquiry_id,omitempty"`
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"omitempty,max=2000"`
	ValidUntil  string      `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes       string      `json:"notes" validate:"omitempty,max=2000"`
	Items       []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest moves a quote along its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent accepted rejected ready_for_invoicing invoiced"`
}

// ReplaceItemsRequest swaps the full line item set of a draft quote.
type ReplaceItemsRequest struct {
	Items   []ItemInput `json:"items" validate:"required,min=1,dive"`
	Version int64       `json:"version" validate:"required,min=1"`
}

// UpdateDetailsRequest edits the descriptive fields of a quote.
type UpdateDetailsRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	ValidUntil  string `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes" validate:"omitempty,max=2000"`
	Version     int64  `json:"version" validate:"required,min=1"`
}
