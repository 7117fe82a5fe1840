package jobs

// JobItemInput is one requested job line for direct job creation.
type JobItemInput struct {
	Description string `json:"description" validate:"required,max=500"`
	Quantity    int64  `json:"quantity" validate:"required,min=1"`
	ProductID   *int64 `json:"product_id,omitempty"`
}

// CreateJobRequest is the payload for creating a job directly, without a
// source quote.
type CreateJobRequest struct {
	CustomerID    int64          `json:"customer_id" validate:"required,min=1"`
	ScheduledDate string         `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo    *int64         `json:"assigned_to,omitempty"`
	Notes         string         `json:"notes" validate:"omitempty,max=2000"`
	Items         []JobItemInput `json:"items" validate:"omitempty,dive"`
}

// UpdateStatusRequest moves a job along its lifecycle. Notes are carried
// into the status_change log entry.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// ScheduleRequest sets the scheduled date and installer assignment.
type ScheduleRequest struct {
	ScheduledDate string `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	AssignedTo    *int64 `json:"assigned_to,omitempty"`
	Version       int64  `json:"version" validate:"required,min=1"`
}

// AddUpdateRequest appends a free-form entry to the job update log.
type AddUpdateRequest struct {
	UpdateType string `json:"update_type" validate:"required,oneof=progress_update customer_contact issue_reported materials_update schedule_change"`
	Notes      string `json:"notes" validate:"required,max=4000"`
}

// ConvertQuoteRequest carries optional overrides for quote conversion.
type ConvertQuoteRequest struct {
	ScheduledDate string `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo    *int64 `json:"assigned_to,omitempty"`
}
