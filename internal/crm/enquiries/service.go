package enquiries

import (
	"context"
	"fmt"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/shared"
)

// Service wraps business rules for enquiries.
type Service struct {
	repo Repository
}

// NewService constructs an enquiry service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create logs a new lead with status new.
func (s *Service) Create(ctx context.Context, actor crm.Actor, req CreateEnquiryRequest) (*Enquiry, error) {
	e := &Enquiry{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		EnquiryType: req.EnquiryType,
		Source:      req.Source,
		Message:     req.Message,
		Status:      StatusNew,
		UserID:      actor.UserID,
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one enquiry.
func (s *Service) Get(ctx context.Context, id int64) (*Enquiry, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of enquiries.
func (s *Service) List(ctx context.Context, f Filter) ([]Enquiry, shared.Pagination, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown enquiry status %q", crm.ErrValidation, f.Status)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// UpdateStatus moves an enquiry forward along its lifecycle. Setting the
// current status again is treated as a successful no-op so retried requests
// do not fail.
func (s *Service) UpdateStatus(ctx context.Context, id int64, newStatus EnquiryStatus) (*Enquiry, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown enquiry status %q", crm.ErrValidation, newStatus)
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == newStatus {
		return e, nil
	}
	if newStatus == StatusConverted {
		return nil, fmt.Errorf("%w: enquiries reach converted only through conversion", crm.ErrInvalidTransition)
	}
	if !e.Status.CanTransition(newStatus) {
		return nil, fmt.Errorf("%w: enquiry cannot move from %s to %s", crm.ErrInvalidTransition, e.Status, newStatus)
	}
	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ConvertToCustomer creates a customer from the enquiry's contact fields and
// sets the one-way conversion marker, both in a single transaction.
func (s *Service) ConvertToCustomer(ctx context.Context, actor crm.Actor, id int64) (customerID int64, err error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if e.ConvertedToCustomerID != nil {
		return 0, fmt.Errorf("%w: enquiry %d is already converted to customer %d", crm.ErrInvalidState, id, *e.ConvertedToCustomerID)
	}
	if e.Status == StatusLost {
		return 0, fmt.Errorf("%w: lost enquiry %d cannot be converted", crm.ErrInvalidState, id)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		newID, err := tx.InsertCustomer(ctx, NewCustomerRecord{
			Name:   e.Name,
			Email:  e.Email,
			Phone:  e.Phone,
			Notes:  e.Message,
			UserID: actor.UserID,
		})
		if err != nil {
			return err
		}
		if err := tx.MarkConvertedToCustomer(ctx, id, newID); err != nil {
			return err
		}
		customerID = newID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return customerID, nil
}

// MarkQuoted records that a quote was raised from this enquiry.
func (s *Service) MarkQuoted(ctx context.Context, id, quoteID int64) error {
	return s.repo.MarkQuoted(ctx, id, quoteID)
}
