package enquiries

import "time"

// EnquiryStatus tracks how far a lead has progressed.
type EnquiryStatus string

const (
	StatusNew       EnquiryStatus = "new"
	StatusContacted EnquiryStatus = "contacted"
	StatusQuoted    EnquiryStatus = "quoted"
	StatusConverted EnquiryStatus = "converted"
	StatusLost      EnquiryStatus = "lost"
)

// IsValid checks if the status is a known value.
func (s EnquiryStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQuoted, StatusConverted, StatusLost:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further progression is allowed.
func (s EnquiryStatus) IsTerminal() bool {
	return s == StatusConverted || s == StatusLost
}

// forwardEdges is the closed set of allowed progressions. Lost is reachable
// from any non-terminal status and handled separately.
var forwardEdges = map[EnquiryStatus][]EnquiryStatus{
	StatusNew:       {StatusContacted, StatusQuoted},
	StatusContacted: {StatusQuoted},
	StatusQuoted:    {StatusConverted},
}

// CanTransition reports whether from -> to is an allowed edge.
func (s EnquiryStatus) CanTransition(to EnquiryStatus) bool {
	if to == StatusLost {
		return !s.IsTerminal()
	}
	for _, next := range forwardEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Enquiry is an inbound lead record, pre-customer. The conversion markers are
// one-way: once set they are never cleared.
type Enquiry struct {
	ID                    int64         `json:"id"`
	Name                  string        `json:"name"`
	Email                 string        `json:"email"`
	Phone                 string        `json:"phone"`
	EnquiryType           string        `json:"enquiry_type"`
	Source                string        `json:"source"`
	Message               string        `json:"message"`
	Status                EnquiryStatus `json:"status"`
	ConvertedToCustomerID *int64        `json:"converted_to_customer_id,omitempty"`
	ConvertedToQuoteID    *int64        `json:"converted_to_quote_id,omitempty"`
	UserID                int64         `json:"user_id"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// Filter narrows enquiry listings.
type Filter struct {
	Status  EnquiryStatus
	Page    int
	PerPage int
}
