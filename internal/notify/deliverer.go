package notify

import (
	"context"
	"fmt"
)

// Deliverer routes a queued message to its channel backend. It runs inside
// the background worker, not the request path.
type Deliverer struct {
	mailer Mailer
	sms    SMSSender
}

// NewDeliverer constructs a Deliverer.
func NewDeliverer(mailer Mailer, sms SMSSender) *Deliverer {
	return &Deliverer{mailer: mailer, sms: sms}
}

// Deliver sends one message on its channel.
func (d *Deliverer) Deliver(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case ChannelEmail:
		return d.mailer.SendEmail(ctx, msg.Target, msg.Subject, msg.Body)
	case ChannelSMS:
		return d.sms.SendSMS(ctx, msg.Target, msg.Body)
	default:
		return fmt.Errorf("undeliverable channel %q", msg.Channel)
	}
}
