package customers

// CreateCustomerRequest is the payload for creating a customer.
type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Address string `json:"address" validate:"omitempty,max=300"`
	City    string `json:"city" validate:"omitempty,max=100"`
	State   string `json:"state" validate:"omitempty,max=100"`
	Zip     string `json:"zip" validate:"omitempty,max=20"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
	Status  string `json:"status" validate:"omitempty,oneof=active inactive lead"`
}

// UpdateCustomerRequest is the payload for editing a customer. Version is the
// version the caller last read; a stale value is rejected.
type UpdateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Address string `json:"address" validate:"omitempty,max=300"`
	City    string `json:"city" validate:"omitempty,max=100"`
	State   string `json:"state" validate:"omitempty,max=100"`
	Zip     string `json:"zip" validate:"omitempty,max=20"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
	Status  string `json:"status" validate:"required,oneof=active inactive lead"`
	Version int64  `json:"version" validate:"required,min=1"`
}
