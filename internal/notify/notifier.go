package notify

import (
	"context"

	"go.uber.org/zap"

	"lightning-paywall.backend/pkg/logger"
)

// AdminNotifier delivers out-of-band alerts to the platform operators.
// Delivery transport (SMTP etc.) lives behind this boundary.
type AdminNotifier interface {
	Notify(ctx context.Context, subject, body string)
}

// LogNotifier records admin alerts in the structured log. It stands in
// wherever a real mail transport is not configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, subject, body string) {
	logger.Warn(ctx, "Admin notification",
		zap.String("subject", subject),
		zap.String("body", body),
	)
}
