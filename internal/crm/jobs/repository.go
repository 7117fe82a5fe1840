package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/crm/quotes"
	"github.com/iris-crm/iris/internal/platform/db"
)

// ConvertibleQuote is the slice of a quote the converter needs.
type ConvertibleQuote struct {
	ID         int64
	CustomerID int64
	Status     quotes.QuoteStatus
	Notes      string
}

// QuoteLine is a quote item as seen by the converter. Prices stay behind on
// the quote.
type QuoteLine struct {
	Description string
	Quantity    int64
	ProductID   *int64
}

// TxRepository exposes the operations of a single conversion transaction.
type TxRepository interface {
	LockQuote(ctx context.Context, quoteID int64) (*ConvertibleQuote, error)
	QuoteLines(ctx context.Context, quoteID int64) ([]QuoteLine, error)
	MarkQuoteConverted(ctx context.Context, quoteID int64) error
	InsertJob(ctx context.Context, j *Job) (int64, error)
	InsertJobItem(ctx context.Context, item JobItem) error
	InsertJobUpdate(ctx context.Context, u JobUpdate) error
}

// Repository defines persistence operations for jobs, their items and their
// update log. The converter spans the quotes table inside one transaction.
type Repository interface {
	Create(ctx context.Context, j *Job) (int64, error)
	Get(ctx context.Context, id int64) (*Job, error)
	List(ctx context.Context, f Filter) ([]Job, int, error)
	UpdateStatus(ctx context.Context, id int64, from, to JobStatus, completionDate *time.Time, entry JobUpdate) error
	Schedule(ctx context.Context, id int64, date time.Time, assignedTo *int64, expectedVersion int64) error
	MarkReadyForInvoicing(ctx context.Context, id int64) error
	MarkInvoiced(ctx context.Context, id int64, invoiceDate time.Time) error
	InsertUpdate(ctx context.Context, u *JobUpdate) (int64, error)
	ListUpdates(ctx context.Context, jobID int64) ([]JobUpdate, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const jobColumns = `id, customer_id, quote_id, status, scheduled_date, completion_date, assigned_to,
	ready_for_invoicing, invoiced, invoice_date, notes, user_id, version, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.CustomerID, &j.QuoteID, &j.Status, &j.ScheduledDate, &j.CompletionDate, &j.AssignedTo,
		&j.ReadyForInvoicing, &j.Invoiced, &j.InvoiceDate, &j.Notes, &j.UserID, &j.Version, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	return &j, nil
}

// Create inserts a job and its items in one transaction.
func (r *PGRepository) Create(ctx context.Context, j *Job) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	id, err := insertJob(ctx, tx, j)
	if err != nil {
		return 0, err
	}
	for _, it := range j.Items {
		it.JobID = id
		if err := insertJobItem(ctx, tx, it); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func insertJob(ctx context.Context, tx pgx.Tx, j *Job) (int64, error) {
	const query = `
		INSERT INTO jobs (customer_id, quote_id, status, scheduled_date, completion_date, assigned_to,
			ready_for_invoicing, invoiced, invoice_date, notes, user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, false, NULL, $7, $8, 1, $9, $9)
		RETURNING id`
	var id int64
	err := tx.QueryRow(ctx, query,
		j.CustomerID, j.QuoteID, j.Status, j.ScheduledDate, j.CompletionDate, j.AssignedTo,
		j.Notes, j.UserID, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

func insertJobItem(ctx context.Context, tx pgx.Tx, it JobItem) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO job_items (job_id, description, quantity, product_id) VALUES ($1, $2, $3, $4)`,
		it.JobID, it.Description, it.Quantity, it.ProductID,
	)
	if err != nil {
		return fmt.Errorf("insert job item: %w", err)
	}
	return nil
}

func insertJobUpdate(ctx context.Context, tx pgx.Tx, u JobUpdate) (int64, error) {
	const query = `
		INSERT INTO job_updates (job_id, update_type, notes, previous_status, new_status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := tx.QueryRow(ctx, query,
		u.JobID, u.UpdateType, u.Notes, u.PreviousStatus, u.NewStatus, u.CreatedBy, createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job update: %w", err)
	}
	return id, nil
}

// Get retrieves a job with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	j, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_id, description, quantity, product_id FROM job_items WHERE job_id = $1 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load job items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it JobItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.Description, &it.Quantity, &it.ProductID); err != nil {
			return nil, err
		}
		j.Items = append(j.Items, it)
	}
	return j, rows.Err()
}

// List returns jobs matching the filter, without items.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Job, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if f.CustomerID != 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", idx))
		args = append(args, f.CustomerID)
		idx++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.AssignedTo != 0 {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", idx))
		args = append(args, f.AssignedTo)
		idx++
	}
	if f.Invoiceable {
		conditions = append(conditions, "ready_for_invoicing = true AND invoiced = false")
	}
	if f.Invoiced {
		conditions = append(conditions, "invoiced = true")
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("count jobs: %w", err))
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(
		`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, idx, idx+1,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("list jobs: %w", err))
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(
			&j.ID, &j.CustomerID, &j.QuoteID, &j.Status, &j.ScheduledDate, &j.CompletionDate, &j.AssignedTo,
			&j.ReadyForInvoicing, &j.Invoiced, &j.InvoiceDate, &j.Notes, &j.UserID, &j.Version, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves a job between statuses and appends the status_change
// log entry in the same transaction. The write is conditional on the current
// status so the log never diverges from the actual transition.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, from, to JobStatus, completionDate *time.Time, entry JobUpdate) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = $1, completion_date = COALESCE($2, completion_date), version = version + 1, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		to, completionDate, time.Now().UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %d moved away from %s concurrently", crm.ErrConflict, id, from)
	}
	if _, err := insertJobUpdate(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Schedule writes scheduling fields conditional on the expected version.
func (r *PGRepository) Schedule(ctx context.Context, id int64, date time.Time, assignedTo *int64, expectedVersion int64) error {
	const query = `
		UPDATE jobs SET scheduled_date = $1, assigned_to = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`
	tag, err := r.pool.Exec(ctx, query, date, assignedTo, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %d version %d is stale", crm.ErrConflict, id, expectedVersion)
	}
	return nil
}

// MarkReadyForInvoicing flips the flag, conditional on completed status.
func (r *PGRepository) MarkReadyForInvoicing(ctx context.Context, id int64) error {
	const query = `
		UPDATE jobs SET ready_for_invoicing = true, version = version + 1, updated_at = $1
		WHERE id = $2 AND status = $3 AND ready_for_invoicing = false`
	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id, StatusCompleted)
	if err != nil {
		return fmt.Errorf("mark ready for invoicing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %d is not a completed uninvoiced job", crm.ErrPrecondition, id)
	}
	return nil
}

// MarkInvoiced flips the invoiced flag, conditional on ready_for_invoicing.
func (r *PGRepository) MarkInvoiced(ctx context.Context, id int64, invoiceDate time.Time) error {
	const query = `
		UPDATE jobs SET invoiced = true, invoice_date = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND ready_for_invoicing = true AND invoiced = false`
	tag, err := r.pool.Exec(ctx, query, invoiceDate, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark invoiced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: job %d is not ready for invoicing or already invoiced", crm.ErrPrecondition, id)
	}
	return nil
}

// InsertUpdate appends a log entry outside any transition.
func (r *PGRepository) InsertUpdate(ctx context.Context, u *JobUpdate) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	id, err := insertJobUpdate(ctx, tx, *u)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// ListUpdates returns the update log newest first.
func (r *PGRepository) ListUpdates(ctx context.Context, jobID int64) ([]JobUpdate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_id, update_type, notes, previous_status, new_status, created_by, created_at
		 FROM job_updates WHERE job_id = $1 ORDER BY created_at DESC, id DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job updates: %w", err)
	}
	defer rows.Close()

	var out []JobUpdate
	for rows.Next() {
		var u JobUpdate
		if err := rows.Scan(&u.ID, &u.JobID, &u.UpdateType, &u.Notes, &u.PreviousStatus, &u.NewStatus, &u.CreatedBy, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// LockQuote reads the quote row for update so concurrent conversions
// serialize on it.
func (t *txRepo) LockQuote(ctx context.Context, quoteID int64) (*ConvertibleQuote, error) {
	var q ConvertibleQuote
	err := t.tx.QueryRow(ctx,
		`SELECT id, customer_id, status, notes FROM quotes WHERE id = $1 FOR UPDATE`,
		quoteID,
	).Scan(&q.ID, &q.CustomerID, &q.Status, &q.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	return &q, nil
}

// QuoteLines loads the source items without price fields.
func (t *txRepo) QuoteLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT description, quantity, product_id FROM quote_items WHERE quote_id = $1 ORDER BY id`,
		quoteID,
	)
	if err != nil {
		return nil, fmt.Errorf("load quote lines: %w", err)
	}
	defer rows.Close()

	var out []QuoteLine
	for rows.Next() {
		var l QuoteLine
		if err := rows.Scan(&l.Description, &l.Quantity, &l.ProductID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkQuoteConverted stamps the quote as consumed by conversion.
func (t *txRepo) MarkQuoteConverted(ctx context.Context, quoteID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE quotes SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND status = $4`,
		quotes.StatusConverted, time.Now().UTC(), quoteID, quotes.StatusAccepted,
	)
	if err != nil {
		return fmt.Errorf("mark quote converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d is no longer accepted", crm.ErrInvalidState, quoteID)
	}
	return nil
}

// InsertJob creates the job row inside the conversion transaction.
func (t *txRepo) InsertJob(ctx context.Context, j *Job) (int64, error) {
	return insertJob(ctx, t.tx, j)
}

// InsertJobItem creates one cloned line inside the conversion transaction.
func (t *txRepo) InsertJobItem(ctx context.Context, item JobItem) error {
	return insertJobItem(ctx, t.tx, item)
}

// InsertJobUpdate appends a log entry inside the conversion transaction.
func (t *txRepo) InsertJobUpdate(ctx context.Context, u JobUpdate) error {
	_, err := insertJobUpdate(ctx, t.tx, u)
	return err
}

var _ Repository = (*PGRepository)(nil)
