// Package notify delivers fire-and-forget customer notifications. Dispatch
// enqueues a background task; delivery failures are logged by the worker and
// never surface to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/observability"
)

// Channel selects the delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// IsValid checks if the channel is supported.
func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Message is one notification to deliver.
type Message struct {
	Channel Channel `json:"channel"`
	Target  string  `json:"target"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
}

// Enqueuer hands a message to the background queue.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, msg Message) error
}

// Dispatcher validates and enqueues notifications.
type Dispatcher struct {
	logger   *slog.Logger
	enqueuer Enqueuer
	metrics  *observability.Metrics
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(logger *slog.Logger, enqueuer Enqueuer) *Dispatcher {
	return &Dispatcher{logger: logger, enqueuer: enqueuer}
}

// SetMetrics wires the notification counter.
func (d *Dispatcher) SetMetrics(m *observability.Metrics) {
	d.metrics = m
}

func (d *Dispatcher) observe(channel Channel, outcome string) {
	if d.metrics != nil {
		d.metrics.ObserveNotification(string(channel), outcome)
	}
}

// Dispatch enqueues a notification. An unknown channel or empty target is a
// validation error; an enqueue failure is logged and swallowed so callers
// never block on notification delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if !msg.Channel.IsValid() {
		return fmt.Errorf("%w: unknown notification channel %q", crm.ErrValidation, msg.Channel)
	}
	if msg.Target == "" {
		return fmt.Errorf("%w: notification target is required", crm.ErrValidation)
	}
	if err := d.enqueuer.EnqueueNotification(ctx, msg); err != nil {
		d.observe(msg.Channel, "enqueue_failed")
		d.logger.Error("enqueue notification",
			slog.String("channel", string(msg.Channel)),
			slog.String("target", msg.Target),
			slog.Any("error", err))
		return nil
	}
	d.observe(msg.Channel, "enqueued")
	return nil
}
