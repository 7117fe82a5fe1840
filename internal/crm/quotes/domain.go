package quotes

import "time"

// QuoteStatus is the closed lifecycle enum for a quote.
type QuoteStatus string

const (
	StatusDraft             QuoteStatus = "draft"
	StatusSent              QuoteStatus = "sent"
	StatusAccepted          QuoteStatus = "accepted"
	StatusRejected          QuoteStatus = "rejected"
	StatusReadyForInvoicing QuoteStatus = "ready_for_invoicing"
	StatusInvoiced          QuoteStatus = "invoiced"
	// StatusConverted marks a quote consumed by job conversion. It is set
	// only by the converter, never through UpdateStatus.
	StatusConverted QuoteStatus = "converted"
)

// IsValid checks if the status is a known value.
func (s QuoteStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected,
		StatusReadyForInvoicing, StatusInvoiced, StatusConverted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further transitions.
func (s QuoteStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusInvoiced || s == StatusConverted
}

// transitions is the closed set of forward edges. Conversion is excluded;
// only the converter moves a quote to converted.
var transitions = map[QuoteStatus][]QuoteStatus{
	StatusDraft:             {StatusSent},
	StatusSent:              {StatusAccepted, StatusRejected},
	StatusAccepted:          {StatusReadyForInvoicing, StatusRejected},
	StatusReadyForInvoicing: {StatusInvoiced},
}

// CanTransition reports whether from -> to is an allowed edge.
func (s QuoteStatus) CanTransition(to QuoteStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CanEditItems reports whether line items may still be changed.
func (s QuoteStatus) CanEditItems() bool {
	return s == StatusDraft
}

// QuoteItem is a line on a quote. Total is always quantity times unit price,
// recomputed on every edit.
type QuoteItem struct {
	ID          int64   `json:"id"`
	QuoteID     int64   `json:"quote_id"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
	ProductID   *int64  `json:"product_id,omitempty"`
}

// Quote is a priced proposal tied to one customer.
type Quote struct {
	ID          int64       `json:"id"`
	CustomerID  int64       `json:"customer_id"`
	EnquiryID   *int64      `json:"enquiry_id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	TotalAmount float64     `json:"total_amount"`
	Status      QuoteStatus `json:"status"`
	ValidUntil  *time.Time  `json:"valid_until,omitempty"`
	Notes       string      `json:"notes"`
	UserID      int64       `json:"user_id"`
	Version     int64       `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Items       []QuoteItem `json:"items,omitempty"`
}

// SumItems derives the quote total from its line items.
func SumItems(items []QuoteItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Total
	}
	return total
}

// Filter narrows quote listings.
type Filter struct {
	CustomerID int64
	Status     QuoteStatus
	Page       int
	PerPage    int
}
