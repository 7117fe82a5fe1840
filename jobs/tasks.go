// Package jobs runs background work: queued notification delivery and the
// nightly quote expiry scan.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/iris-crm/iris/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendNotification delivers one queued notification.
	TaskTypeSendNotification = "notify:send"
	// TaskTypeQuoteExpiryScan finds sent quotes past their valid_until date.
	TaskTypeQuoteExpiryScan = "quotes:expiry-scan"
)

// NewSendNotificationTask constructs an Asynq task from a message.
func NewSendNotificationTask(msg notify.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendNotification, data), nil
}

// NewQuoteExpiryScanTask constructs the scan task. It carries no payload.
func NewQuoteExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuoteExpiryScan, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueNotification enqueues a notify:send task. Satisfies
// notify.Enqueuer.
func (c *Client) EnqueueNotification(ctx context.Context, msg notify.Message) error {
	task, err := NewSendNotificationTask(msg)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ notify.Enqueuer = (*Client)(nil)
