package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/iris-crm/iris/internal/notify"
	"github.com/iris-crm/iris/internal/observability"
)

// NotifyDeliveryHandler processes notify:send tasks.
type NotifyDeliveryHandler struct {
	logger    *slog.Logger
	deliverer *notify.Deliverer
	metrics   *observability.Metrics
}

// NewNotifyDeliveryHandler constructs the handler.
func NewNotifyDeliveryHandler(logger *slog.Logger, deliverer *notify.Deliverer, metrics *observability.Metrics) *NotifyDeliveryHandler {
	return &NotifyDeliveryHandler{logger: logger, deliverer: deliverer, metrics: metrics}
}

// ProcessTask delivers one notification. A malformed payload is dropped;
// a delivery error is logged and retried by the queue.
func (h *NotifyDeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg notify.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.logger.Error("malformed notification payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := h.deliverer.Deliver(ctx, msg); err != nil {
		if h.metrics != nil {
			h.metrics.ObserveNotification(string(msg.Channel), "failure")
		}
		h.logger.Error("deliver notification",
			slog.String("channel", string(msg.Channel)),
			slog.String("target", msg.Target),
			slog.Any("error", err))
		return err
	}
	if h.metrics != nil {
		h.metrics.ObserveNotification(string(msg.Channel), "delivered")
	}
	return nil
}
