package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
)

type mockRepository struct {
	nextID    int64
	quotes    map[int64]*Quote
	customers map[int64]bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextID:    1,
		quotes:    make(map[int64]*Quote),
		customers: map[int64]bool{1: true},
	}
}

func cloneQuote(q *Quote) *Quote {
	clone := *q
	clone.Items = append([]QuoteItem(nil), q.Items...)
	return &clone
}

func (m *mockRepository) Create(_ context.Context, q *Quote) (int64, error) {
	clone := cloneQuote(q)
	clone.ID = m.nextID
	clone.Version = 1
	clone.CreatedAt = time.Now().UTC()
	for i := range clone.Items {
		clone.Items[i].ID = int64(i + 1)
		clone.Items[i].QuoteID = clone.ID
	}
	m.quotes[clone.ID] = clone
	m.nextID++
	return clone.ID, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Quote, error) {
	q, ok := m.quotes[id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return cloneQuote(q), nil
}

func (m *mockRepository) List(_ context.Context, f Filter) ([]Quote, int, error) {
	var out []Quote
	for _, q := range m.quotes {
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		out = append(out, *cloneQuote(q))
	}
	return out, len(out), nil
}

func (m *mockRepository) CustomerExists(_ context.Context, customerID int64) (bool, error) {
	return m.customers[customerID], nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, from, to QuoteStatus) error {
	q, ok := m.quotes[id]
	if !ok {
		return crm.ErrNotFound
	}
	if q.Status != from {
		return fmt.Errorf("%w: quote %d moved away from %s concurrently", crm.ErrConflict, id, from)
	}
	q.Status = to
	q.Version++
	return nil
}

func (m *mockRepository) UpdateDetails(_ context.Context, q *Quote, expectedVersion int64) error {
	stored, ok := m.quotes[q.ID]
	if !ok {
		return crm.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: quote %d version %d is stale", crm.ErrConflict, q.ID, expectedVersion)
	}
	stored.Title = q.Title
	stored.Description = q.Description
	stored.ValidUntil = q.ValidUntil
	stored.Notes = q.Notes
	stored.Version++
	return nil
}

func (m *mockRepository) ReplaceItems(_ context.Context, id, expectedVersion int64, items []QuoteItem, total float64) error {
	stored, ok := m.quotes[id]
	if !ok {
		return crm.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: quote %d version %d is stale", crm.ErrConflict, id, expectedVersion)
	}
	stored.Items = append([]QuoteItem(nil), items...)
	stored.TotalAmount = total
	stored.Version++
	return nil
}

func (m *mockRepository) RecalculateTotal(_ context.Context, id int64) (float64, error) {
	stored, ok := m.quotes[id]
	if !ok {
		return 0, crm.ErrNotFound
	}
	stored.TotalAmount = SumItems(stored.Items)
	return stored.TotalAmount, nil
}

var testActor = crm.Actor{UserID: 5, Role: crm.RoleSales}

func newTestService(repo Repository) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo)
}

func seedQuote(t *testing.T, svc *Service, items ...ItemInput) *Quote {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{Description: "Supply and install split system", Quantity: 1, UnitPrice: 1800}}
	}
	q, err := svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 1,
		Title:      "HVAC install",
		Items:      items,
	})
	require.NoError(t, err)
	return q
}

func advance(t *testing.T, svc *Service, id int64, statuses ...QuoteStatus) *Quote {
	t.Helper()
	var q *Quote
	var err error
	for _, st := range statuses {
		q, err = svc.UpdateStatus(context.Background(), id, st)
		require.NoError(t, err)
	}
	return q
}

func TestCreateComputesTotal(t *testing.T) {
	svc := newTestService(newMockRepository())
	q := seedQuote(t, svc,
		ItemInput{Description: "Ducting", Quantity: 2, UnitPrice: 10},
		ItemInput{Description: "Thermostat", Quantity: 1, UnitPrice: 5},
	)
	require.Equal(t, 25.0, q.TotalAmount)
	require.Equal(t, StatusDraft, q.Status)
	require.Len(t, q.Items, 2)
	require.Equal(t, 20.0, q.Items[0].Total)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMockRepository())

	_, err := svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 99,
		Title:      "Unknown customer",
		Items:      []ItemInput{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, crm.ErrValidation)

	_, err = svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 1,
		Title:      "No items",
	})
	require.ErrorIs(t, err, crm.ErrValidation)

	_, err = svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 1,
		Title:      "Bad quantity",
		Items:      []ItemInput{{Description: "x", Quantity: 0, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, crm.ErrValidation)

	_, err = svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 1,
		Title:      "Negative price",
		Items:      []ItemInput{{Description: "x", Quantity: 1, UnitPrice: -2}},
	})
	require.ErrorIs(t, err, crm.ErrValidation)
}

func TestStatusTransitionTable(t *testing.T) {
	allowed := []struct {
		path []QuoteStatus
	}{
		{[]QuoteStatus{StatusSent}},
		{[]QuoteStatus{StatusSent, StatusAccepted}},
		{[]QuoteStatus{StatusSent, StatusRejected}},
		{[]QuoteStatus{StatusSent, StatusAccepted, StatusRejected}},
		{[]QuoteStatus{StatusSent, StatusAccepted, StatusReadyForInvoicing}},
		{[]QuoteStatus{StatusSent, StatusAccepted, StatusReadyForInvoicing, StatusInvoiced}},
	}
	for _, tc := range allowed {
		svc := newTestService(newMockRepository())
		q := seedQuote(t, svc)
		final := advance(t, svc, q.ID, tc.path...)
		require.Equal(t, tc.path[len(tc.path)-1], final.Status)
	}

	denied := []struct {
		setup []QuoteStatus
		to    QuoteStatus
	}{
		{nil, StatusAccepted},
		{nil, StatusInvoiced},
		{nil, StatusReadyForInvoicing},
		{nil, StatusRejected},
		{[]QuoteStatus{StatusSent}, StatusDraft},
		{[]QuoteStatus{StatusSent}, StatusInvoiced},
		{[]QuoteStatus{StatusSent, StatusAccepted}, StatusSent},
		{[]QuoteStatus{StatusSent, StatusAccepted}, StatusInvoiced},
		{[]QuoteStatus{StatusSent, StatusRejected}, StatusSent},
		{[]QuoteStatus{StatusSent, StatusAccepted, StatusReadyForInvoicing}, StatusAccepted},
		{[]QuoteStatus{StatusSent, StatusAccepted, StatusReadyForInvoicing, StatusInvoiced}, StatusSent},
	}
	for _, tc := range denied {
		svc := newTestService(newMockRepository())
		q := seedQuote(t, svc)
		if len(tc.setup) > 0 {
			advance(t, svc, q.ID, tc.setup...)
		}
		_, err := svc.UpdateStatus(context.Background(), q.ID, tc.to)
		require.ErrorIs(t, err, crm.ErrInvalidTransition, "setup %v to %s", tc.setup, tc.to)
	}
}

func TestSameStatusIsNoOp(t *testing.T) {
	svc := newTestService(newMockRepository())
	q := seedQuote(t, svc)

	got, err := svc.UpdateStatus(context.Background(), q.ID, StatusDraft)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
	require.Equal(t, q.Version, got.Version)
}

func TestConvertedUnreachableViaStatus(t *testing.T) {
	svc := newTestService(newMockRepository())
	q := seedQuote(t, svc)
	advance(t, svc, q.ID, StatusSent, StatusAccepted)

	_, err := svc.UpdateStatus(context.Background(), q.ID, StatusConverted)
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
}

func TestReplaceItemsKeepsTotalInvariant(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedQuote(t, svc)

	updated, err := svc.ReplaceItems(context.Background(), q.ID, ReplaceItemsRequest{
		Version: q.Version,
		Items: []ItemInput{
			{Description: "Compressor", Quantity: 3, UnitPrice: 400},
			{Description: "Labour", Quantity: 8, UnitPrice: 95},
		},
	})
	require.NoError(t, err)
	require.Equal(t, SumItems(updated.Items), updated.TotalAmount)
	require.Equal(t, 1960.0, updated.TotalAmount)
}

func TestReplaceItemsOnlyWhileDraft(t *testing.T) {
	svc := newTestService(newMockRepository())
	q := seedQuote(t, svc)
	sent := advance(t, svc, q.ID, StatusSent)

	_, err := svc.ReplaceItems(context.Background(), q.ID, ReplaceItemsRequest{
		Version: sent.Version,
		Items:   []ItemInput{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, crm.ErrInvalidState)
}

func TestReplaceItemsVersionConflict(t *testing.T) {
	svc := newTestService(newMockRepository())
	q := seedQuote(t, svc)

	_, err := svc.ReplaceItems(context.Background(), q.ID, ReplaceItemsRequest{
		Version: q.Version + 5,
		Items:   []ItemInput{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, crm.ErrConflict)
}

type recordingMarker struct {
	enquiryID int64
	quoteID   int64
}

func (r *recordingMarker) MarkQuoted(_ context.Context, enquiryID, quoteID int64) error {
	r.enquiryID = enquiryID
	r.quoteID = quoteID
	return nil
}

func TestCreateFromEnquiryStampsMarker(t *testing.T) {
	svc := newTestService(newMockRepository())
	marker := &recordingMarker{}
	svc.SetEnquiryMarker(marker)

	enquiryID := int64(42)
	q, err := svc.Create(context.Background(), testActor, CreateQuoteRequest{
		CustomerID: 1,
		EnquiryID:  &enquiryID,
		Title:      "From enquiry",
		Items:      []ItemInput{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, enquiryID, marker.enquiryID)
	require.Equal(t, q.ID, marker.quoteID)
}
