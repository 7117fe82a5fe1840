package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/crm/quotes"
	"github.com/iris-crm/iris/internal/observability"
	"github.com/iris-crm/iris/internal/shared"
)

// DefaultScheduleLead is how far out a converted job is scheduled when the
// caller gives no date.
const DefaultScheduleLead = 7 * 24 * time.Hour

// Auditor records who did what to which record.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps business rules for jobs, the update log and quote conversion.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	metrics *observability.Metrics
	audit   Auditor
}

// NewService constructs a job service.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// SetMetrics wires the conversion counter.
func (s *Service) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetAuditor wires the audit trail for conversions and invoicing handoff.
func (s *Service) SetAuditor(a Auditor) {
	s.audit = a
}

func (s *Service) auditRecord(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "job",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observeConversion(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveConversion("quote_to_job", outcome)
	}
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", crm.ErrValidation)
	}
	return &t, nil
}

// Create persists a job built directly, without a source quote.
func (s *Service) Create(ctx context.Context, actor crm.Actor, req CreateJobRequest) (*Job, error) {
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		return nil, err
	}
	j := &Job{
		CustomerID:    req.CustomerID,
		Status:        StatusScheduled,
		ScheduledDate: scheduled,
		AssignedTo:    req.AssignedTo,
		Notes:         req.Notes,
		UserID:        actor.UserID,
	}
	for _, in := range req.Items {
		j.Items = append(j.Items, JobItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			ProductID:   in.ProductID,
		})
	}
	id, err := s.repo.Create(ctx, j)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one job with items.
func (s *Service) Get(ctx context.Context, id int64) (*Job, error) {
	var j *Job
	err := shared.Retry(ctx, shared.RetryAttempts, 50*time.Millisecond, func(ctx context.Context) error {
		var err error
		j, err = s.repo.Get(ctx, id)
		return err
	})
	return j, err
}

// List returns a filtered page of jobs.
func (s *Service) List(ctx context.Context, f Filter) ([]Job, shared.Pagination, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown job status %q", crm.ErrValidation, f.Status)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// ListInvoiceable is the bookkeeper queue: completed jobs flagged ready for
// invoicing and not yet invoiced.
func (s *Service) ListInvoiceable(ctx context.Context, page, perPage int) ([]Job, shared.Pagination, error) {
	return s.List(ctx, Filter{Invoiceable: true, Page: page, PerPage: perPage})
}

// ListInvoiced returns jobs already handed to invoicing.
func (s *Service) ListInvoiced(ctx context.Context, page, perPage int) ([]Job, shared.Pagination, error) {
	return s.List(ctx, Filter{Invoiced: true, Page: page, PerPage: perPage})
}

// UpdateStatus moves a job along its lifecycle and appends the
// status_change log entry atomically with the transition. Re-applying the
// current status is a no-op success.
func (s *Service) UpdateStatus(ctx context.Context, actor crm.Actor, id int64, newStatus JobStatus, notes string) (*Job, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown job status %q", crm.ErrValidation, newStatus)
	}
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status == newStatus {
		return j, nil
	}
	if !j.Status.CanTransition(newStatus) {
		return nil, fmt.Errorf("%w: job cannot move from %s to %s", crm.ErrInvalidTransition, j.Status, newStatus)
	}
	var completion *time.Time
	if newStatus == StatusCompleted {
		now := time.Now().UTC()
		completion = &now
	}
	prev := j.Status
	entry := JobUpdate{
		JobID:          id,
		UpdateType:     UpdateStatusChange,
		Notes:          notes,
		PreviousStatus: &prev,
		NewStatus:      &newStatus,
		CreatedBy:      actor.UserID,
	}
	if err := s.repo.UpdateStatus(ctx, id, prev, newStatus, completion, entry); err != nil {
		return nil, err
	}
	s.auditRecord(ctx, actor.UserID, "job.status_change", id, map[string]any{"from": string(prev), "to": string(newStatus)})
	return s.repo.Get(ctx, id)
}

// Schedule sets the date and installer while the job is still workable, and
// logs the change.
func (s *Service) Schedule(ctx context.Context, actor crm.Actor, id int64, req ScheduleRequest) (*Job, error) {
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, fmt.Errorf("%w: scheduled_date is required", crm.ErrValidation)
	}
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !j.Status.CanSchedule() {
		return nil, fmt.Errorf("%w: job %d is %s and can no longer be scheduled", crm.ErrInvalidState, id, j.Status)
	}
	if err := s.repo.Schedule(ctx, id, *date, req.AssignedTo, req.Version); err != nil {
		return nil, err
	}
	entry := &JobUpdate{
		JobID:      id,
		UpdateType: UpdateScheduleChange,
		Notes:      fmt.Sprintf("rescheduled to %s", date.Format("2006-01-02")),
		CreatedBy:  actor.UserID,
	}
	if _, err := s.repo.InsertUpdate(ctx, entry); err != nil {
		s.logger.Warn("log schedule change", slog.Int64("job_id", id), slog.Any("error", err))
	}
	return s.repo.Get(ctx, id)
}

// MarkReadyForInvoicing flags a completed job for the bookkeeper queue.
// Already-flagged jobs pass unchanged.
func (s *Service) MarkReadyForInvoicing(ctx context.Context, id int64) (*Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.ReadyForInvoicing {
		return j, nil
	}
	if j.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: job %d must be completed before invoicing, is %s", crm.ErrPrecondition, id, j.Status)
	}
	if err := s.repo.MarkReadyForInvoicing(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// MarkInvoiced records the invoicing handoff. The flag is one-way.
func (s *Service) MarkInvoiced(ctx context.Context, id int64) (*Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !j.ReadyForInvoicing {
		return nil, fmt.Errorf("%w: job %d is not ready for invoicing", crm.ErrPrecondition, id)
	}
	if j.Invoiced {
		return nil, fmt.Errorf("%w: job %d is already invoiced", crm.ErrPrecondition, id)
	}
	if err := s.repo.MarkInvoiced(ctx, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// AddUpdate appends a free-form entry to the job's append-only log.
// status_change entries only come from UpdateStatus.
func (s *Service) AddUpdate(ctx context.Context, actor crm.Actor, id int64, req AddUpdateRequest) (*JobUpdate, error) {
	updateType := UpdateType(req.UpdateType)
	if !updateType.IsValid() || updateType == UpdateStatusChange {
		return nil, fmt.Errorf("%w: unknown update type %q", crm.ErrValidation, req.UpdateType)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	entry := &JobUpdate{
		JobID:      id,
		UpdateType: updateType,
		Notes:      req.Notes,
		CreatedBy:  actor.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	entryID, err := s.repo.InsertUpdate(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.ID = entryID
	return entry, nil
}

// ListUpdates returns the full update log, newest first.
func (s *Service) ListUpdates(ctx context.Context, id int64) ([]JobUpdate, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListUpdates(ctx, id)
}

// ConvertQuoteToJob turns an accepted quote into a scheduled job: the quote
// is marked converted, the job is created and the items are cloned without
// price fields, all inside a single transaction. A quote converts at most
// once; repeat calls fail without creating anything.
func (s *Service) ConvertQuoteToJob(ctx context.Context, actor crm.Actor, quoteID int64, req ConvertQuoteRequest) (*Job, error) {
	override, err := parseDate(req.ScheduledDate)
	if err != nil {
		return nil, err
	}

	var jobID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.LockQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.Status == quotes.StatusConverted {
			return fmt.Errorf("%w: quote %d is already converted", crm.ErrInvalidState, quoteID)
		}
		if quote.Status != quotes.StatusAccepted {
			return fmt.Errorf("%w: quote %d must be accepted to convert, is %s", crm.ErrInvalidState, quoteID, quote.Status)
		}
		lines, err := tx.QuoteLines(ctx, quoteID)
		if err != nil {
			return err
		}

		scheduled := override
		if scheduled == nil {
			d := time.Now().UTC().Add(DefaultScheduleLead)
			scheduled = &d
		}
		job := &Job{
			CustomerID:    quote.CustomerID,
			QuoteID:       &quoteID,
			Status:        StatusScheduled,
			ScheduledDate: scheduled,
			AssignedTo:    req.AssignedTo,
			Notes:         quote.Notes,
			UserID:        actor.UserID,
		}
		id, err := tx.InsertJob(ctx, job)
		if err != nil {
			return err
		}
		for _, line := range lines {
			err := tx.InsertJobItem(ctx, JobItem{
				JobID:       id,
				Description: line.Description,
				Quantity:    line.Quantity,
				ProductID:   line.ProductID,
			})
			if err != nil {
				return err
			}
		}
		if err := tx.MarkQuoteConverted(ctx, quoteID); err != nil {
			return err
		}
		err = tx.InsertJobUpdate(ctx, JobUpdate{
			JobID:      id,
			UpdateType: UpdateProgress,
			Notes:      fmt.Sprintf("created from quote %d", quoteID),
			CreatedBy:  actor.UserID,
		})
		if err != nil {
			return err
		}
		jobID = id
		return nil
	})
	if err != nil {
		s.observeConversion("failure")
		return nil, err
	}
	s.observeConversion("success")
	s.auditRecord(ctx, actor.UserID, "job.converted_from_quote", jobID, map[string]any{"quote_id": quoteID})
	s.logger.Info("quote converted to job",
		slog.Int64("quote_id", quoteID),
		slog.Int64("job_id", jobID),
		slog.Int64("user_id", actor.UserID))
	return s.repo.Get(ctx, jobID)
}
