package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/shared"
)

// EnquiryMarker stamps the quote marker on a source enquiry.
type EnquiryMarker interface {
	MarkQuoted(ctx context.Context, enquiryID, quoteID int64) error
}

// Service wraps business rules for quotes.
type Service struct {
	logger    *slog.Logger
	repo      Repository
	enquiries EnquiryMarker
}

// NewService constructs a quote service.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// SetEnquiryMarker wires the enquiry module for conversion markers.
func (s *Service) SetEnquiryMarker(m EnquiryMarker) {
	s.enquiries = m
}

func buildItems(inputs []ItemInput) ([]QuoteItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: a quote needs at least one item", crm.ErrValidation)
	}
	items := make([]QuoteItem, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", crm.ErrValidation, i+1)
		}
		if in.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %d unit price cannot be negative", crm.ErrValidation, i+1)
		}
		items = append(items, QuoteItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Total:       float64(in.Quantity) * in.UnitPrice,
			ProductID:   in.ProductID,
		})
	}
	return items, nil
}

func parseValidUntil(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_until must be YYYY-MM-DD", crm.ErrValidation)
	}
	return &t, nil
}

// Create validates and persists a new draft quote. When the quote is raised
// from an enquiry the enquiry's one-way quote marker is stamped afterwards;
// a marker failure does not undo the created quote.
func (s *Service) Create(ctx context.Context, actor crm.Actor, req CreateQuoteRequest) (*Quote, error) {
	ok, err := s.repo.CustomerExists(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %d does not exist", crm.ErrValidation, req.CustomerID)
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseValidUntil(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		CustomerID:  req.CustomerID,
		EnquiryID:   req.EnquiryID,
		Title:       req.Title,
		Description: req.Description,
		TotalAmount: SumItems(items),
		Status:      StatusDraft,
		ValidUntil:  validUntil,
		Notes:       req.Notes,
		UserID:      actor.UserID,
		Items:       items,
	}
	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, err
	}
	if req.EnquiryID != nil && s.enquiries != nil {
		if err := s.enquiries.MarkQuoted(ctx, *req.EnquiryID, id); err != nil {
			s.logger.Warn("mark enquiry quoted",
				slog.Int64("enquiry_id", *req.EnquiryID),
				slog.Int64("quote_id", id),
				slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one quote with items.
func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	var q *Quote
	err := shared.Retry(ctx, shared.RetryAttempts, 50*time.Millisecond, func(ctx context.Context) error {
		var err error
		q, err = s.repo.Get(ctx, id)
		return err
	})
	return q, err
}

// List returns a filtered page of quotes.
func (s *Service) List(ctx context.Context, f Filter) ([]Quote, shared.Pagination, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown quote status %q", crm.ErrValidation, f.Status)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// UpdateStatus moves a quote along its forward edges. Re-applying the
// current status is a no-op success so retried requests stay idempotent.
// Converted is reserved for the job converter and never settable here.
func (s *Service) UpdateStatus(ctx context.Context, id int64, newStatus QuoteStatus) (*Quote, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown quote status %q", crm.ErrValidation, newStatus)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status == newStatus {
		return q, nil
	}
	if newStatus == StatusConverted {
		return nil, fmt.Errorf("%w: quotes reach converted only through job conversion", crm.ErrInvalidTransition)
	}
	if !q.Status.CanTransition(newStatus) {
		return nil, fmt.Errorf("%w: quote cannot move from %s to %s", crm.ErrInvalidTransition, q.Status, newStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, q.Status, newStatus); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateDetails edits descriptive fields conditional on the caller's version.
func (s *Service) UpdateDetails(ctx context.Context, id int64, req UpdateDetailsRequest) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseValidUntil(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	q.Title = req.Title
	q.Description = req.Description
	q.ValidUntil = validUntil
	q.Notes = req.Notes
	if err := s.repo.UpdateDetails(ctx, q, req.Version); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ReplaceItems swaps the line item set of a draft quote and re-derives its
// total in the same write.
func (s *Service) ReplaceItems(ctx context.Context, id int64, req ReplaceItemsRequest) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Status.CanEditItems() {
		return nil, fmt.Errorf("%w: items can only change while the quote is draft, not %s", crm.ErrInvalidState, q.Status)
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceItems(ctx, id, req.Version, items, SumItems(items)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// RecalculateTotal re-derives total_amount from stored items.
func (s *Service) RecalculateTotal(ctx context.Context, id int64) (float64, error) {
	return s.repo.RecalculateTotal(ctx, id)
}
