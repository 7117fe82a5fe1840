package customers

import "time"

// CustomerStatus classifies a customer record.
type CustomerStatus string

const (
	StatusActive   CustomerStatus = "active"
	StatusInactive CustomerStatus = "inactive"
	StatusLead     CustomerStatus = "lead"
)

// IsValid checks if the status is a known value.
func (s CustomerStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusLead:
		return true
	default:
		return false
	}
}

// Customer is an identity and contact record. Quotes and jobs reference
// customers by id and never own them.
type Customer struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Address   string         `json:"address"`
	City      string         `json:"city"`
	State     string         `json:"state"`
	Zip       string         `json:"zip"`
	Notes     string         `json:"notes"`
	Status    CustomerStatus `json:"status"`
	UserID    int64          `json:"user_id"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Filter narrows customer listings.
type Filter struct {
	Status  CustomerStatus
	Search  string
	Page    int
	PerPage int
}
