package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/shared"
)

// Service wraps business rules for stock.
type Service struct {
	logger *slog.Logger
	repo   Repository
}

// NewService constructs an inventory service.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// Create persists a new stock item.
func (s *Service) Create(ctx context.Context, req CreateItemRequest) (*Item, error) {
	item := &Item{
		SKU:            req.SKU,
		Name:           req.Name,
		Description:    req.Description,
		QuantityOnHand: req.Quantity,
		Unit:           req.Unit,
		ReorderLevel:   req.ReorderLevel,
	}
	id, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one stock item.
func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of stock items.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// Adjust changes quantity on hand by a signed delta. Stock never goes below
// zero and the write is conditional on the caller's version.
func (s *Service) Adjust(ctx context.Context, id int64, req AdjustRequest) (*Item, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta cannot be zero", crm.ErrValidation)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.QuantityOnHand+req.Delta < 0 {
		return nil, fmt.Errorf("%w: adjusting item %d by %d would take stock below zero", crm.ErrValidation, id, req.Delta)
	}
	if err := s.repo.Adjust(ctx, id, req.Delta, req.Version); err != nil {
		return nil, err
	}
	adjusted, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock adjusted",
		slog.Int64("item_id", id),
		slog.Int64("delta", req.Delta),
		slog.String("reason", req.Reason),
		slog.Int64("on_hand", adjusted.QuantityOnHand))
	if adjusted.LowStock() {
		s.logger.Warn("stock at or below reorder level",
			slog.Int64("item_id", id),
			slog.String("sku", adjusted.SKU),
			slog.Int64("on_hand", adjusted.QuantityOnHand),
			slog.Int64("reorder_level", adjusted.ReorderLevel))
	}
	return adjusted, nil
}
