package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/crm/quotes"
)

type storedQuote struct {
	ID         int64
	CustomerID int64
	Status     quotes.QuoteStatus
	Notes      string
	Lines      []QuoteLine
}

type mockRepository struct {
	nextJobID    int64
	nextUpdateID int64
	jobs         map[int64]*Job
	updates      map[int64][]JobUpdate
	quotes       map[int64]*storedQuote
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextJobID:    1,
		nextUpdateID: 1,
		jobs:         make(map[int64]*Job),
		updates:      make(map[int64][]JobUpdate),
		quotes:       make(map[int64]*storedQuote),
	}
}

func cloneJob(j *Job) *Job {
	clone := *j
	clone.Items = append([]JobItem(nil), j.Items...)
	return &clone
}

func (m *mockRepository) Create(_ context.Context, j *Job) (int64, error) {
	clone := cloneJob(j)
	clone.ID = m.nextJobID
	clone.Version = 1
	clone.CreatedAt = time.Now().UTC()
	for i := range clone.Items {
		clone.Items[i].JobID = clone.ID
	}
	m.jobs[clone.ID] = clone
	m.nextJobID++
	return clone.ID, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *mockRepository) List(_ context.Context, f Filter) ([]Job, int, error) {
	var out []Job
	for _, j := range m.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Invoiceable && (!j.ReadyForInvoicing || j.Invoiced) {
			continue
		}
		if f.Invoiced && !j.Invoiced {
			continue
		}
		out = append(out, *cloneJob(j))
	}
	return out, len(out), nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, from, to JobStatus, completionDate *time.Time, entry JobUpdate) error {
	j, ok := m.jobs[id]
	if !ok {
		return crm.ErrNotFound
	}
	if j.Status != from {
		return fmt.Errorf("%w: job %d moved away from %s concurrently", crm.ErrConflict, id, from)
	}
	j.Status = to
	if completionDate != nil {
		j.CompletionDate = completionDate
	}
	j.Version++
	m.appendUpdate(entry)
	return nil
}

func (m *mockRepository) appendUpdate(entry JobUpdate) int64 {
	entry.ID = m.nextUpdateID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.nextUpdateID++
	m.updates[entry.JobID] = append(m.updates[entry.JobID], entry)
	return entry.ID
}

func (m *mockRepository) Schedule(_ context.Context, id int64, date time.Time, assignedTo *int64, expectedVersion int64) error {
	j, ok := m.jobs[id]
	if !ok {
		return crm.ErrNotFound
	}
	if j.Version != expectedVersion {
		return fmt.Errorf("%w: job %d version %d is stale", crm.ErrConflict, id, expectedVersion)
	}
	j.ScheduledDate = &date
	j.AssignedTo = assignedTo
	j.Version++
	return nil
}

func (m *mockRepository) MarkReadyForInvoicing(_ context.Context, id int64) error {
	j, ok := m.jobs[id]
	if !ok {
		return crm.ErrNotFound
	}
	if j.Status != StatusCompleted || j.ReadyForInvoicing {
		return fmt.Errorf("%w: job %d is not a completed uninvoiced job", crm.ErrPrecondition, id)
	}
	j.ReadyForInvoicing = true
	j.Version++
	return nil
}

func (m *mockRepository) MarkInvoiced(_ context.Context, id int64, invoiceDate time.Time) error {
	j, ok := m.jobs[id]
	if !ok {
		return crm.ErrNotFound
	}
	if !j.ReadyForInvoicing || j.Invoiced {
		return fmt.Errorf("%w: job %d is not ready for invoicing or already invoiced", crm.ErrPrecondition, id)
	}
	j.Invoiced = true
	j.InvoiceDate = &invoiceDate
	j.Version++
	return nil
}

func (m *mockRepository) InsertUpdate(_ context.Context, u *JobUpdate) (int64, error) {
	if _, ok := m.jobs[u.JobID]; !ok {
		return 0, crm.ErrNotFound
	}
	return m.appendUpdate(*u), nil
}

func (m *mockRepository) ListUpdates(_ context.Context, jobID int64) ([]JobUpdate, error) {
	entries := m.updates[jobID]
	out := make([]JobUpdate, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	jobsSnap := make(map[int64]*Job, len(m.jobs))
	for id, j := range m.jobs {
		jobsSnap[id] = cloneJob(j)
	}
	quotesSnap := make(map[int64]*storedQuote, len(m.quotes))
	for id, q := range m.quotes {
		clone := *q
		quotesSnap[id] = &clone
	}
	updatesSnap := make(map[int64][]JobUpdate, len(m.updates))
	for id, us := range m.updates {
		updatesSnap[id] = append([]JobUpdate(nil), us...)
	}
	nextJob, nextUpdate := m.nextJobID, m.nextUpdateID

	if err := fn(ctx, &mockTx{repo: m}); err != nil {
		m.jobs = jobsSnap
		m.quotes = quotesSnap
		m.updates = updatesSnap
		m.nextJobID, m.nextUpdateID = nextJob, nextUpdate
		return err
	}
	return nil
}

type mockTx struct {
	repo *mockRepository
}

func (t *mockTx) LockQuote(_ context.Context, quoteID int64) (*ConvertibleQuote, error) {
	q, ok := t.repo.quotes[quoteID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return &ConvertibleQuote{ID: q.ID, CustomerID: q.CustomerID, Status: q.Status, Notes: q.Notes}, nil
}

func (t *mockTx) QuoteLines(_ context.Context, quoteID int64) ([]QuoteLine, error) {
	q, ok := t.repo.quotes[quoteID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return append([]QuoteLine(nil), q.Lines...), nil
}

func (t *mockTx) MarkQuoteConverted(_ context.Context, quoteID int64) error {
	q, ok := t.repo.quotes[quoteID]
	if !ok {
		return crm.ErrNotFound
	}
	if q.Status != quotes.StatusAccepted {
		return fmt.Errorf("%w: quote %d is no longer accepted", crm.ErrInvalidState, quoteID)
	}
	q.Status = quotes.StatusConverted
	return nil
}

func (t *mockTx) InsertJob(ctx context.Context, j *Job) (int64, error) {
	return t.repo.Create(ctx, j)
}

func (t *mockTx) InsertJobItem(_ context.Context, item JobItem) error {
	j, ok := t.repo.jobs[item.JobID]
	if !ok {
		return crm.ErrNotFound
	}
	j.Items = append(j.Items, item)
	return nil
}

func (t *mockTx) InsertJobUpdate(_ context.Context, u JobUpdate) error {
	if _, ok := t.repo.jobs[u.JobID]; !ok {
		return crm.ErrNotFound
	}
	t.repo.appendUpdate(u)
	return nil
}

var testActor = crm.Actor{UserID: 11, Role: crm.RoleSales}

func newTestService(repo Repository) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo)
}

func seedJob(t *testing.T, svc *Service) *Job {
	t.Helper()
	j, err := svc.Create(context.Background(), testActor, CreateJobRequest{
		CustomerID:    1,
		ScheduledDate: "2026-09-07",
		Notes:         "install split system",
		Items:         []JobItemInput{{Description: "Install unit", Quantity: 1}},
	})
	require.NoError(t, err)
	return j
}

func completeJob(t *testing.T, svc *Service, id int64) *Job {
	t.Helper()
	_, err := svc.UpdateStatus(context.Background(), testActor, id, StatusInProgress, "")
	require.NoError(t, err)
	j, err := svc.UpdateStatus(context.Background(), testActor, id, StatusCompleted, "all done")
	require.NoError(t, err)
	return j
}

func TestJobStatusTransitions(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	got, err := svc.UpdateStatus(context.Background(), testActor, j.ID, StatusInProgress, "started")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, got.Status)

	got, err = svc.UpdateStatus(context.Background(), testActor, j.ID, StatusCompleted, "")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.CompletionDate)

	// completed is terminal for the status field
	_, err = svc.UpdateStatus(context.Background(), testActor, j.ID, StatusScheduled, "")
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
	_, err = svc.UpdateStatus(context.Background(), testActor, j.ID, StatusCancelled, "")
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
}

func TestCancelFromNonTerminal(t *testing.T) {
	for _, setup := range [][]JobStatus{nil, {StatusInProgress}} {
		svc := newTestService(newMockRepository())
		j := seedJob(t, svc)
		for _, st := range setup {
			_, err := svc.UpdateStatus(context.Background(), testActor, j.ID, st, "")
			require.NoError(t, err)
		}
		got, err := svc.UpdateStatus(context.Background(), testActor, j.ID, StatusCancelled, "customer pulled out")
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, got.Status)
	}
}

func TestSkippingInProgressFails(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	_, err := svc.UpdateStatus(context.Background(), testActor, j.ID, StatusCompleted, "")
	require.ErrorIs(t, err, crm.ErrInvalidTransition)
}

func TestStatusChangeAppendsLogEntry(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	_, err := svc.UpdateStatus(context.Background(), testActor, j.ID, StatusInProgress, "crew on site")
	require.NoError(t, err)

	updates, err := svc.ListUpdates(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	entry := updates[0]
	require.Equal(t, UpdateStatusChange, entry.UpdateType)
	require.Equal(t, StatusScheduled, *entry.PreviousStatus)
	require.Equal(t, StatusInProgress, *entry.NewStatus)
	require.Equal(t, testActor.UserID, entry.CreatedBy)
	require.Equal(t, "crew on site", entry.Notes)
}

func TestSameStatusIsNoOp(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	got, err := svc.UpdateStatus(context.Background(), testActor, j.ID, StatusScheduled, "")
	require.NoError(t, err)
	require.Equal(t, j.Version, got.Version)

	updates, err := svc.ListUpdates(context.Background(), j.ID)
	require.NoError(t, err)
	require.Empty(t, updates)
}

func TestScheduleGuards(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	installer := int64(9)
	got, err := svc.Schedule(context.Background(), testActor, j.ID, ScheduleRequest{
		ScheduledDate: "2026-09-14",
		AssignedTo:    &installer,
		Version:       j.Version,
	})
	require.NoError(t, err)
	require.Equal(t, int64(9), *got.AssignedTo)

	completeJob(t, svc, j.ID)

	fresh, err := svc.Get(context.Background(), j.ID)
	require.NoError(t, err)
	_, err = svc.Schedule(context.Background(), testActor, j.ID, ScheduleRequest{
		ScheduledDate: "2026-09-21",
		Version:       fresh.Version,
	})
	require.ErrorIs(t, err, crm.ErrInvalidState)
}

func TestMarkReadyForInvoicingPrecondition(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	_, err := svc.MarkReadyForInvoicing(context.Background(), j.ID)
	require.ErrorIs(t, err, crm.ErrPrecondition)

	unchanged, err := svc.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.False(t, unchanged.ReadyForInvoicing)

	completeJob(t, svc, j.ID)
	got, err := svc.MarkReadyForInvoicing(context.Background(), j.ID)
	require.NoError(t, err)
	require.True(t, got.ReadyForInvoicing)

	// idempotent once set
	again, err := svc.MarkReadyForInvoicing(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, got.Version, again.Version)
}

func TestMarkInvoicedPreconditions(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)
	completeJob(t, svc, j.ID)

	_, err := svc.MarkInvoiced(context.Background(), j.ID)
	require.ErrorIs(t, err, crm.ErrPrecondition)

	_, err = svc.MarkReadyForInvoicing(context.Background(), j.ID)
	require.NoError(t, err)

	got, err := svc.MarkInvoiced(context.Background(), j.ID)
	require.NoError(t, err)
	require.True(t, got.Invoiced)
	require.NotNil(t, got.InvoiceDate)

	_, err = svc.MarkInvoiced(context.Background(), j.ID)
	require.ErrorIs(t, err, crm.ErrPrecondition)
}

func TestUpdateLogIsAppendOnly(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	for i, notes := range []string{"first visit booked", "customer called", "waiting on parts"} {
		_, err := svc.AddUpdate(context.Background(), testActor, j.ID, AddUpdateRequest{
			UpdateType: string(UpdateProgress),
			Notes:      notes,
		})
		require.NoError(t, err)

		updates, err := svc.ListUpdates(context.Background(), j.ID)
		require.NoError(t, err)
		require.Len(t, updates, i+1)
		// newest first
		require.Equal(t, notes, updates[0].Notes)
	}

	updates, err := svc.ListUpdates(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, "first visit booked", updates[2].Notes)
}

func TestAddUpdateRejectsStatusChangeType(t *testing.T) {
	svc := newTestService(newMockRepository())
	j := seedJob(t, svc)

	_, err := svc.AddUpdate(context.Background(), testActor, j.ID, AddUpdateRequest{
		UpdateType: string(UpdateStatusChange),
		Notes:      "sneaky",
	})
	require.ErrorIs(t, err, crm.ErrValidation)
}

func seedAcceptedQuote(repo *mockRepository) *storedQuote {
	productID := int64(77)
	q := &storedQuote{
		ID:         10,
		CustomerID: 4,
		Status:     quotes.StatusAccepted,
		Notes:      "access via rear lane",
		Lines: []QuoteLine{
			{Description: "Ducting", Quantity: 2},
			{Description: "Thermostat", Quantity: 1, ProductID: &productID},
		},
	}
	repo.quotes[q.ID] = q
	return q
}

func TestConvertQuoteToJob(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedAcceptedQuote(repo)

	before := time.Now().UTC()
	job, err := svc.ConvertQuoteToJob(context.Background(), testActor, q.ID, ConvertQuoteRequest{})
	require.NoError(t, err)

	require.Equal(t, q.CustomerID, job.CustomerID)
	require.Equal(t, q.ID, *job.QuoteID)
	require.Equal(t, StatusScheduled, job.Status)
	require.Equal(t, "access via rear lane", job.Notes)
	require.Len(t, job.Items, 2)
	require.Equal(t, "Ducting", job.Items[0].Description)
	require.Equal(t, int64(2), job.Items[0].Quantity)
	require.Equal(t, "Thermostat", job.Items[1].Description)
	require.Equal(t, int64(77), *job.Items[1].ProductID)

	// default schedule is one week out
	require.NotNil(t, job.ScheduledDate)
	require.WithinDuration(t, before.Add(DefaultScheduleLead), *job.ScheduledDate, time.Minute)

	require.Equal(t, quotes.StatusConverted, repo.quotes[q.ID].Status)
	require.Len(t, repo.jobs, 1)
}

func TestConvertQuoteIsNotRepeatable(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedAcceptedQuote(repo)

	_, err := svc.ConvertQuoteToJob(context.Background(), testActor, q.ID, ConvertQuoteRequest{})
	require.NoError(t, err)

	_, err = svc.ConvertQuoteToJob(context.Background(), testActor, q.ID, ConvertQuoteRequest{})
	require.ErrorIs(t, err, crm.ErrInvalidState)
	require.Len(t, repo.jobs, 1)
}

func TestConvertRequiresAcceptedQuote(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedAcceptedQuote(repo)
	repo.quotes[q.ID].Status = quotes.StatusSent

	_, err := svc.ConvertQuoteToJob(context.Background(), testActor, q.ID, ConvertQuoteRequest{})
	require.ErrorIs(t, err, crm.ErrInvalidState)
	require.Empty(t, repo.jobs)

	_, err = svc.ConvertQuoteToJob(context.Background(), testActor, 999, ConvertQuoteRequest{})
	require.ErrorIs(t, err, crm.ErrNotFound)
}

func TestConvertScheduleOverride(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	q := seedAcceptedQuote(repo)

	job, err := svc.ConvertQuoteToJob(context.Background(), testActor, q.ID, ConvertQuoteRequest{
		ScheduledDate: "2026-10-01",
	})
	require.NoError(t, err)
	require.Equal(t, "2026-10-01", job.ScheduledDate.Format("2006-01-02"))
}

func TestBookkeeperQueues(t *testing.T) {
	svc := newTestService(newMockRepository())

	ready := seedJob(t, svc)
	completeJob(t, svc, ready.ID)
	_, err := svc.MarkReadyForInvoicing(context.Background(), ready.ID)
	require.NoError(t, err)

	open := seedJob(t, svc)
	_ = open

	billed := seedJob(t, svc)
	completeJob(t, svc, billed.ID)
	_, err = svc.MarkReadyForInvoicing(context.Background(), billed.ID)
	require.NoError(t, err)
	_, err = svc.MarkInvoiced(context.Background(), billed.ID)
	require.NoError(t, err)

	invoiceable, _, err := svc.ListInvoiceable(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, invoiceable, 1)
	require.Equal(t, ready.ID, invoiceable[0].ID)

	invoiced, _, err := svc.ListInvoiced(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Len(t, invoiced, 1)
	require.Equal(t, billed.ID, invoiced[0].ID)
}
