package enquiries

// CreateEnquiryRequest is the payload for logging a new lead.
type CreateEnquiryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=40"`
	EnquiryType string `json:"enquiry_type" validate:"omitempty,max=100"`
	Source      string `json:"source" validate:"omitempty,max=100"`
	Message     string `json:"message" validate:"omitempty,max=4000"`
}

// UpdateStatusRequest moves an enquiry along its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted quoted converted lost"`
}
