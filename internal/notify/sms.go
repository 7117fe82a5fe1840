package notify

import (
	"context"
	"log/slog"
)

// SMSSender delivers a single SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMSSender writes messages to the log instead of a provider. Used until
// an SMS gateway is configured.
type LogSMSSender struct {
	logger *slog.Logger
}

// NewLogSMSSender constructs the logging sender.
func NewLogSMSSender(logger *slog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

// SendSMS logs the message and reports success.
func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms (log only)", slog.String("to", to), slog.String("body", body))
	return nil
}

var _ SMSSender = (*LogSMSSender)(nil)
