package enquiries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/platform/db"
)

// NewCustomerRecord carries the fields copied from an enquiry when a customer
// record is created during conversion.
type NewCustomerRecord struct {
	Name   string
	Email  string
	Phone  string
	Notes  string
	UserID int64
}

// TxRepository exposes the operations of a single conversion transaction.
type TxRepository interface {
	InsertCustomer(ctx context.Context, rec NewCustomerRecord) (int64, error)
	MarkConvertedToCustomer(ctx context.Context, enquiryID, customerID int64) error
}

// Repository defines persistence operations for enquiries.
type Repository interface {
	Create(ctx context.Context, e *Enquiry) (int64, error)
	Get(ctx context.Context, id int64) (*Enquiry, error)
	List(ctx context.Context, f Filter) ([]Enquiry, int, error)
	UpdateStatus(ctx context.Context, id int64, status EnquiryStatus) error
	MarkQuoted(ctx context.Context, id, quoteID int64) error
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

const enquiryColumns = `id, name, email, phone, enquiry_type, source, message, status,
	converted_to_customer_id, converted_to_quote_id, user_id, created_at, updated_at`

func scanEnquiry(row pgx.Row) (*Enquiry, error) {
	var e Enquiry
	err := row.Scan(
		&e.ID, &e.Name, &e.Email, &e.Phone, &e.EnquiryType, &e.Source, &e.Message, &e.Status,
		&e.ConvertedToCustomerID, &e.ConvertedToQuoteID, &e.UserID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	return &e, nil
}

// Create inserts an enquiry and returns its id.
func (r *PGRepository) Create(ctx context.Context, e *Enquiry) (int64, error) {
	const query = `
		INSERT INTO enquiries (name, email, phone, enquiry_type, source, message, status, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		e.Name, e.Email, e.Phone, e.EnquiryType, e.Source, e.Message, e.Status, e.UserID, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert enquiry: %w", err)
	}
	return id, nil
}

// Get retrieves an enquiry by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Enquiry, error) {
	query := `SELECT ` + enquiryColumns + ` FROM enquiries WHERE id = $1`
	return scanEnquiry(r.pool.QueryRow(ctx, query, id))
}

// List returns enquiries matching the filter plus the unpaginated total.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Enquiry, int, error) {
	where := `1=1`
	args := []any{}
	if f.Status != "" {
		where = `status = $1`
		args = append(args, f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enquiries WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("count enquiries: %w", err))
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
		`SELECT %s FROM enquiries WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		enquiryColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("list enquiries: %w", err))
	}
	defer rows.Close()

	var out []Enquiry
	for rows.Next() {
		var e Enquiry
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Email, &e.Phone, &e.EnquiryType, &e.Source, &e.Message, &e.Status,
			&e.ConvertedToCustomerID, &e.ConvertedToQuoteID, &e.UserID, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// UpdateStatus writes a new status value.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status EnquiryStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE enquiries SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update enquiry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crm.ErrNotFound
	}
	return nil
}

// MarkQuoted records the quote created from this enquiry. The marker is
// one-way: a second quote never overwrites the first.
func (r *PGRepository) MarkQuoted(ctx context.Context, id, quoteID int64) error {
	const query = `
		UPDATE enquiries
		SET converted_to_quote_id = $1, status = $2, updated_at = $3
		WHERE id = $4 AND converted_to_quote_id IS NULL`
	tag, err := r.pool.Exec(ctx, query, quoteID, StatusQuoted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark enquiry quoted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: enquiry %d already has a quote", crm.ErrInvalidState, id)
	}
	return nil
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

// InsertCustomer creates a customer row from enquiry contact fields.
func (t *txRepo) InsertCustomer(ctx context.Context, rec NewCustomerRecord) (int64, error) {
	const query = `
		INSERT INTO customers (name, email, phone, address, city, state, zip, notes, status, user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, '', '', '', '', $4, 'lead', $5, 1, $6, $6)
		RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, rec.Name, rec.Email, rec.Phone, rec.Notes, rec.UserID, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert customer from enquiry: %w", err)
	}
	return id, nil
}

// MarkConvertedToCustomer sets the one-way conversion marker.
func (t *txRepo) MarkConvertedToCustomer(ctx context.Context, enquiryID, customerID int64) error {
	const query = `
		UPDATE enquiries
		SET converted_to_customer_id = $1, status = $2, updated_at = $3
		WHERE id = $4 AND converted_to_customer_id IS NULL`
	tag, err := t.tx.Exec(ctx, query, customerID, StatusConverted, time.Now().UTC(), enquiryID)
	if err != nil {
		return fmt.Errorf("mark enquiry converted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: enquiry %d is already converted", crm.ErrInvalidState, enquiryID)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
