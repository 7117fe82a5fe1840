package enquiries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
)

type mockRepository struct {
	nextEnquiryID  int64
	nextCustomerID int64
	enquiries      map[int64]*Enquiry
	customers      map[int64]NewCustomerRecord
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextEnquiryID:  1,
		nextCustomerID: 100,
		enquiries:      make(map[int64]*Enquiry),
		customers:      make(map[int64]NewCustomerRecord),
	}
}

func (m *mockRepository) Create(_ context.Context, e *Enquiry) (int64, error) {
	clone := *e
	clone.ID = m.nextEnquiryID
	clone.CreatedAt = time.Now().UTC()
	m.enquiries[clone.ID] = &clone
	m.nextEnquiryID++
	return clone.ID, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Enquiry, error) {
	e, ok := m.enquiries[id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *mockRepository) List(_ context.Context, f Filter) ([]Enquiry, int, error) {
	var out []Enquiry
	for _, e := range m.enquiries {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, status EnquiryStatus) error {
	e, ok := m.enquiries[id]
	if !ok {
		return crm.ErrNotFound
	}
	e.Status = status
	return nil
}

func (m *mockRepository) MarkQuoted(_ context.Context, id, quoteID int64) error {
	e, ok := m.enquiries[id]
	if !ok {
		return crm.ErrNotFound
	}
	if e.ConvertedToQuoteID != nil {
		return fmt.Errorf("%w: enquiry %d already has a quote", crm.ErrInvalidState, id)
	}
	e.ConvertedToQuoteID = &quoteID
	e.Status = StatusQuoted
	return nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Enquiry, len(m.enquiries))
	for id, e := range m.enquiries {
		snapshot[id] = *e
	}
	if err := fn(ctx, &mockTx{repo: m}); err != nil {
		for id := range m.enquiries {
			restored := snapshot[id]
			m.enquiries[id] = &restored
		}
		return err
	}
	return nil
}

type mockTx struct {
	repo *mockRepository
}

func (t *mockTx) InsertCustomer(_ context.Context, rec NewCustomerRecord) (int64, error) {
	id := t.repo.nextCustomerID
	t.repo.customers[id] = rec
	t.repo.nextCustomerID++
	return id, nil
}

func (t *mockTx) MarkConvertedToCustomer(_ context.Context, enquiryID, customerID int64) error {
	e, ok := t.repo.enquiries[enquiryID]
	if !ok {
		return crm.ErrNotFound
	}
	if e.ConvertedToCustomerID != nil {
		return fmt.Errorf("%w: enquiry %d is already converted", crm.ErrInvalidState, enquiryID)
	}
	e.ConvertedToCustomerID = &customerID
	e.Status = StatusConverted
	return nil
}

var testActor = crm.Actor{UserID: 3, Role: crm.RoleSales}

func seedEnquiry(t *testing.T, svc *Service) *Enquiry {
	t.Helper()
	e, err := svc.Create(context.Background(), testActor, CreateEnquiryRequest{
		Name:    "Jordan Blake",
		Email:   "jordan@example.com",
		Phone:   "0400 123 456",
		Source:  "website",
		Message: "needs a split system installed",
	})
	require.NoError(t, err)
	return e
}

func TestStatusProgression(t *testing.T) {
	svc := NewService(newMockRepository())
	e := seedEnquiry(t, svc)

	updated, err := svc.UpdateStatus(context.Background(), e.ID, StatusContacted)
	require.NoError(t, err)
	require.Equal(t, StatusContacted, updated.Status)

	// Same status again is a no-op success.
	again, err := svc.UpdateStatus(context.Background(), e.ID, StatusContacted)
	require.NoError(t, err)
	require.Equal(t, StatusContacted, again.Status)

	// Backwards is rejected.
	_, err = svc.UpdateStatus(context.Background(), e.ID, StatusNew)
	require.ErrorIs(t, err, crm.ErrInvalidTransition)

	// Converted is reserved for the conversion path.
	_, err = svc.UpdateStatus(context.Background(), e.ID, StatusConverted)
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
}

func TestLostFromAnyNonTerminal(t *testing.T) {
	svc := NewService(newMockRepository())
	e := seedEnquiry(t, svc)

	updated, err := svc.UpdateStatus(context.Background(), e.ID, StatusLost)
	require.NoError(t, err)
	require.Equal(t, StatusLost, updated.Status)

	_, err = svc.UpdateStatus(context.Background(), e.ID, StatusContacted)
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
}

func TestConvertToCustomer(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	e := seedEnquiry(t, svc)

	customerID, err := svc.ConvertToCustomer(context.Background(), testActor, e.ID)
	require.NoError(t, err)
	require.NotZero(t, customerID)

	rec := repo.customers[customerID]
	require.Equal(t, "Jordan Blake", rec.Name)
	require.Equal(t, "jordan@example.com", rec.Email)

	got, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, got.Status)
	require.NotNil(t, got.ConvertedToCustomerID)
	require.Equal(t, customerID, *got.ConvertedToCustomerID)

	// The conversion marker is one-way.
	_, err = svc.ConvertToCustomer(context.Background(), testActor, e.ID)
	require.ErrorIs(t, err, crm.ErrInvalidState)
	require.Len(t, repo.customers, 1)
}

func TestConvertLostEnquiryFails(t *testing.T) {
	svc := NewService(newMockRepository())
	e := seedEnquiry(t, svc)

	_, err := svc.UpdateStatus(context.Background(), e.ID, StatusLost)
	require.NoError(t, err)

	_, err = svc.ConvertToCustomer(context.Background(), testActor, e.ID)
	require.ErrorIs(t, err, crm.ErrInvalidState)
}

func TestMarkQuotedIsOneWay(t *testing.T) {
	svc := NewService(newMockRepository())
	e := seedEnquiry(t, svc)

	require.NoError(t, svc.MarkQuoted(context.Background(), e.ID, 55))

	got, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusQuoted, got.Status)
	require.Equal(t, int64(55), *got.ConvertedToQuoteID)

	err = svc.MarkQuoted(context.Background(), e.ID, 56)
	require.ErrorIs(t, err, crm.ErrInvalidState)

	got, err = svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, int64(55), *got.ConvertedToQuoteID)
}
