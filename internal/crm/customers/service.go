package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/shared"
)

// Service wraps business rules for customer records.
type Service struct {
	repo Repository
}

// NewService constructs a customer service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and persists a new customer owned by the acting user.
func (s *Service) Create(ctx context.Context, actor crm.Actor, req CreateCustomerRequest) (*Customer, error) {
	status := CustomerStatus(req.Status)
	if status == "" {
		status = StatusLead
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown customer status %q", crm.ErrValidation, req.Status)
	}
	c := &Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Notes:   req.Notes,
		Status:  status,
		UserID:  actor.UserID,
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	var c *Customer
	err := shared.Retry(ctx, shared.RetryAttempts, 50*time.Millisecond, func(ctx context.Context) error {
		var err error
		c, err = s.repo.Get(ctx, id)
		return err
	})
	return c, err
}

// List returns a filtered page of customers with pagination metadata.
func (s *Service) List(ctx context.Context, f Filter) ([]Customer, shared.Pagination, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown customer status %q", crm.ErrValidation, f.Status)
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// Update applies an edit conditional on the version the caller last read.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	status := CustomerStatus(req.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown customer status %q", crm.ErrValidation, req.Status)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Name = req.Name
	current.Email = req.Email
	current.Phone = req.Phone
	current.Address = req.Address
	current.City = req.City
	current.State = req.State
	current.Zip = req.Zip
	current.Notes = req.Notes
	current.Status = status
	if err := s.repo.Update(ctx, current, req.Version); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a customer. Quotes and jobs keep their customer id; the
// reference is not cascaded here.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
