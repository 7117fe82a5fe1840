package jobs

import "time"

// JobStatus is the closed lifecycle enum for a job.
type JobStatus string

const (
	StatusScheduled  JobStatus = "scheduled"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusCancelled  JobStatus = "cancelled"
)

// IsValid checks if the status is a known value.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status field admits no further transitions.
// A completed job still progresses through the invoicing flags.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is an allowed edge. Cancellation
// is reachable from any non-terminal status.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if to == StatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case StatusScheduled:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted
	default:
		return false
	}
}

// CanSchedule reports whether scheduling fields may still change.
func (s JobStatus) CanSchedule() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// UpdateType classifies a job update log entry.
type UpdateType string

const (
	UpdateStatusChange    UpdateType = "status_change"
	UpdateProgress        UpdateType = "progress_update"
	UpdateCustomerContact UpdateType = "customer_contact"
	UpdateIssueReported   UpdateType = "issue_reported"
	UpdateMaterialsUpdate UpdateType = "materials_update"
	UpdateScheduleChange  UpdateType = "schedule_change"
)

// IsValid checks if the update type is a known value.
func (t UpdateType) IsValid() bool {
	switch t {
	case UpdateStatusChange, UpdateProgress, UpdateCustomerContact,
		UpdateIssueReported, UpdateMaterialsUpdate, UpdateScheduleChange:
		return true
	default:
		return false
	}
}

// JobItem is a line of work on a job. Items cloned from a quote carry the
// description, quantity and product reference but never pricing.
type JobItem struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"job_id"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	ProductID   *int64 `json:"product_id,omitempty"`
}

// JobUpdate is one append-only audit entry on a job. Entries are immutable
// once written.
type JobUpdate struct {
	ID             int64      `json:"id"`
	JobID          int64      `json:"job_id"`
	UpdateType     UpdateType `json:"update_type"`
	Notes          string     `json:"notes"`
	PreviousStatus *JobStatus `json:"previous_status,omitempty"`
	NewStatus      *JobStatus `json:"new_status,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Job is a schedulable unit of field work, optionally derived from a quote.
// The invoicing flags are one-way: invoiced implies ready_for_invoicing
// implies completed.
type Job struct {
	ID                int64      `json:"id"`
	CustomerID        int64      `json:"customer_id"`
	QuoteID           *int64     `json:"quote_id,omitempty"`
	Status            JobStatus  `json:"status"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	CompletionDate    *time.Time `json:"completion_date,omitempty"`
	AssignedTo        *int64     `json:"assigned_to,omitempty"`
	ReadyForInvoicing bool       `json:"ready_for_invoicing"`
	Invoiced          bool       `json:"invoiced"`
	InvoiceDate       *time.Time `json:"invoice_date,omitempty"`
	Notes             string     `json:"notes"`
	UserID            int64      `json:"user_id"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Items             []JobItem  `json:"items,omitempty"`
}

// Filter narrows job listings.
type Filter struct {
	CustomerID int64
	Status     JobStatus
	AssignedTo int64
	// Invoiceable selects completed jobs flagged ready_for_invoicing but
	// not yet invoiced.
	Invoiceable bool
	Invoiced    bool
	Page        int
	PerPage     int
}
