package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-crm/iris/internal/notify"
)

// QuoteExpiryScanHandler enqueues follow-up notifications for sent quotes
// past their valid_until date. The scan never mutates quote status.
type QuoteExpiryScanHandler struct {
	logger     *slog.Logger
	pool       *pgxpool.Pool
	dispatcher *notify.Dispatcher
}

// NewQuoteExpiryScanHandler constructs the handler.
func NewQuoteExpiryScanHandler(logger *slog.Logger, pool *pgxpool.Pool, dispatcher *notify.Dispatcher) *QuoteExpiryScanHandler {
	return &QuoteExpiryScanHandler{logger: logger, pool: pool, dispatcher: dispatcher}
}

type expiredQuote struct {
	ID            int64
	Title         string
	CustomerName  string
	CustomerEmail string
}

// ProcessTask runs one scan.
func (h *QuoteExpiryScanHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	const query = `
		SELECT q.id, q.title, c.name, c.email
		FROM quotes q
		JOIN customers c ON c.id = q.customer_id
		WHERE q.status = 'sent' AND q.valid_until IS NOT NULL AND q.valid_until < $1`
	rows, err := h.pool.Query(ctx, query, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scan expired quotes: %w", err)
	}
	defer rows.Close()

	var expired []expiredQuote
	for rows.Next() {
		var q expiredQuote
		if err := rows.Scan(&q.ID, &q.Title, &q.CustomerName, &q.CustomerEmail); err != nil {
			return err
		}
		expired = append(expired, q)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, q := range expired {
		if q.CustomerEmail == "" {
			continue
		}
		// Dispatch logs its own failures.
		_ = h.dispatcher.Dispatch(ctx, notify.Message{
			Channel: notify.ChannelEmail,
			Target:  q.CustomerEmail,
			Subject: fmt.Sprintf("Your quote %q has expired", q.Title),
			Body: fmt.Sprintf("Hi %s, quote %d (%s) has passed its validity date. Reply to this email if you would like an updated price.",
				q.CustomerName, q.ID, q.Title),
		})
	}
	h.logger.Info("quote expiry scan complete", slog.Int("expired", len(expired)))
	return nil
}
